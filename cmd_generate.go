package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"top_criteria_generator/client"
	"top_criteria_generator/publisher"
	"top_criteria_generator/schema"
)

var (
	genPage     string
	genCriteria string
	genRemote   string
	genOut      string
	genPublish  bool
	genEmbed    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one snapshot and print it as JSON",
	Long: `Generate runs the pipeline once for a catalog page, either in-process or against a
running server (--remote), prints the snapshot to stdout and optionally publishes
JSON, Markdown and HTML artifacts to --out.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genPage, "page", "fast-payout", "catalog page slug")
	generateCmd.Flags().StringVar(&genCriteria, "criteria", "fast payout analysis", "free-text focus passed to the prompt")
	generateCmd.Flags().StringVar(&genRemote, "remote", "", "base URL of a running server; generate there instead of in-process")
	generateCmd.Flags().StringVar(&genOut, "out", "", "publish artifacts to this directory")
	generateCmd.Flags().BoolVar(&genPublish, "publish", false, "publish artifacts to config output_dir when --out is not set")
	generateCmd.Flags().BoolVar(&genEmbed, "embed", false, "render HTML for CMS embedding")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := loadCatalog()
	if err != nil {
		return err
	}
	gc, err := contextFor(store, genPage, genCriteria)
	if err != nil {
		return err
	}

	var (
		snap     *schema.Snapshot
		warnings []string
	)
	if genRemote != "" {
		c := client.New(genRemote, client.WithObserver(func(s client.State) {
			log.Debug("generation progress", zap.String("status", string(s.Status)), zap.Int("progress", s.Progress), zap.String("message", s.Message))
		}))
		res, err := c.Generate(cmd.Context(), client.Request{PageContent: gc.Page, Casinos: gc.Casinos, Criteria: gc.Criteria})
		if err != nil {
			var ae *client.APIError
			if errors.As(err, &ae) {
				for _, d := range ae.Details {
					fmt.Fprintln(os.Stderr, "  -", d)
				}
				return fmt.Errorf("%w (%s)", err, ae.Class())
			}
			return err
		}
		snap, warnings = res.Snapshot, res.Warnings
	} else {
		agent, _, err := buildAgent(cfg, log)
		if err != nil {
			return err
		}
		out, err := agent.Generate(cmd.Context(), gc)
		if err != nil {
			return err
		}
		snap, warnings = out.Snapshot, out.Warnings
	}

	for _, w := range warnings {
		log.Warn("generation warning", zap.String("warning", w))
	}

	dir := genOut
	if dir == "" && genPublish {
		dir = cfg.OutputDir
	}
	if dir != "" {
		pub := publisher.New(publisher.BrandsOf(store.Casinos()), nil, publisher.RenderOptions{Embed: genEmbed}, log)
		arts, err := pub.Publish(cmd.Context(), snap, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s, %s, %s\n", arts.JSON, arts.Markdown, arts.HTML)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
