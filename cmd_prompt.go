package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"top_criteria_generator/schema"
)

var (
	promptPage     string
	promptCriteria string
	promptSchema   string
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompt, or the JSON Schema, that generate would send",
	RunE:  runPrompt,
}

func init() {
	promptCmd.Flags().StringVar(&promptPage, "page", "fast-payout", "catalog page slug")
	promptCmd.Flags().StringVar(&promptCriteria, "criteria", "fast payout analysis", "free-text focus passed to the prompt")
	promptCmd.Flags().StringVar(&promptSchema, "schema", "", "print the JSON Schema in this dialect instead (full, openai-strict, gemini)")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	if promptSchema != "" {
		d, err := parseDialect(promptSchema)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(schema.JSONSchema(d))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := loadCatalog()
	if err != nil {
		return err
	}
	gc, err := contextFor(store, promptPage, promptCriteria)
	if err != nil {
		return err
	}
	agent, _, err := buildAgent(cfg, zap.NewNop())
	if err != nil {
		return err
	}
	p := agent.Prompt(gc)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# System\n\n%s\n\n# User\n\n%s", p.System, p.User)
	return nil
}

func parseDialect(s string) (schema.Dialect, error) {
	for _, d := range []schema.Dialect{schema.Full, schema.OpenAIStrict, schema.Gemini} {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown schema dialect %q (want full, openai-strict or gemini)", s)
}
