package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Commute-ai/ai-agents/pkg/library"
	"github.com/Commute-ai/ai-agents/pkg/prompt"
	"github.com/Commute-ai/ai-agents/pkg/starctx"
)

type promptcConfig struct {
	ContentRoot string `yaml:"content_root,omitempty"`
	MaxDepth    int    `yaml:"max_depth,omitempty"`
}

func (c *promptcConfig) loadConfig(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decoding config file: %w", err)
	}
	return nil
}

var rootConfigPath string
var verbose bool

// loadPromptcConfig reads the config file; a missing file at the default
// path just means embedded content with default settings.
func loadPromptcConfig() (promptcConfig, error) {
	var cfg promptcConfig
	err := cfg.loadConfig(rootConfigPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openLibrary() (*library.Library, error) {
	cfg, err := loadPromptcConfig()
	if err != nil {
		return nil, err
	}
	var opts []prompt.Option
	if cfg.MaxDepth > 0 {
		opts = append(opts, prompt.WithMaxDepth(cfg.MaxDepth))
	}
	if cfg.ContentRoot != "" {
		slog.Debug("using content root", "path", cfg.ContentRoot)
		return library.New(os.DirFS(cfg.ContentRoot), opts...)
	}
	return library.Default(opts...)
}

// buildRenderContext merges, in increasing precedence: a YAML context file,
// a Starlark context script, and individual --var flags.
func buildRenderContext(cmd *cobra.Command) (map[string]any, error) {
	ctx := map[string]any{}

	if file, _ := cmd.Flags().GetString("context-file"); file != "" {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading context file: %w", err)
		}
		var fromFile map[string]any
		if err := yaml.Unmarshal(content, &fromFile); err != nil {
			return nil, fmt.Errorf("decoding context file: %w", err)
		}
		for k, v := range fromFile {
			ctx[k] = v
		}
	}

	if script, _ := cmd.Flags().GetString("context-script"); script != "" {
		fromScript, err := starctx.Exec(script, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range fromScript {
			ctx[k] = v
		}
	}

	vars, _ := cmd.Flags().GetStringArray("var")
	for _, kv := range vars {
		key, val, found := strings.Cut(kv, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("malformed --var %q, expected key=value", kv)
		}
		ctx[key] = val
	}
	return ctx, nil
}

var rootCmd = cobra.Command{
	Use:   "promptc",
	Short: "Compose and inspect the prompt templates used by the route agents",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	},
}

var renderCmd = cobra.Command{
	Use:   "render [set]",
	Short: "Render a prompt set against a context and print both prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one prompt set name")
		}
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		ctx, err := buildRenderContext(cmd)
		if err != nil {
			return err
		}
		out, err := lib.Render(args[0], ctx)
		if err != nil {
			return err
		}
		if userOnly, _ := cmd.Flags().GetBool("user-only"); userOnly {
			fmt.Print(out.User)
			return nil
		}
		fmt.Println("--- system ---")
		fmt.Print(out.System)
		fmt.Println("--- user ---")
		fmt.Print(out.User)
		return nil
	},
}

var checkCmd = cobra.Command{
	Use:   "check",
	Short: "Validate every manifest and parse every template in the content root",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		errs := lib.Manager().Check()
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		if len(errs) > 0 {
			return fmt.Errorf("%d templates failed to parse", len(errs))
		}
		fmt.Printf("ok: %d prompt sets\n", len(lib.Names()))
		return nil
	},
}

var inspectCmd = cobra.Command{
	Use:   "inspect [template]",
	Short: "Print the parsed structure of a template",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one template id, like user/route_request")
		}
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		id, err := prompt.ParseTemplateID(args[0], prompt.NamespaceUser)
		if err != nil {
			return err
		}
		doc, err := lib.Manager().Load(id)
		if err != nil {
			return err
		}
		fmt.Print(prompt.Pretty(doc))
		includes, macros := prompt.References(doc)
		if len(includes) > 0 || len(macros) > 0 {
			fmt.Println("---")
		}
		for _, inc := range includes {
			fmt.Printf("includes %s\n", inc)
		}
		for _, name := range macros {
			fmt.Printf("calls %s\n", name)
		}
		return nil
	},
}

var listCmd = cobra.Command{
	Use:   "list",
	Short: "List prompt sets and templates in the content root",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		fmt.Println("sets:")
		for _, name := range lib.Names() {
			set, err := lib.Get(name)
			if err != nil {
				return err
			}
			fmt.Printf("  %s: %s + %s\n", name, set.System, set.User)
		}
		for _, ns := range prompt.Namespaces {
			names, err := lib.Manager().Names(ns)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				continue
			}
			fmt.Printf("%s:\n", ns)
			for _, name := range names {
				fmt.Printf("  %s\n", name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "promptc.yaml", "Path to promptc configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	renderCmd.Flags().String("context-file", "", "YAML file holding the render context")
	renderCmd.Flags().String("context-script", "", "Starlark script producing the render context")
	renderCmd.Flags().StringArray("var", []string{}, "Set a context value as key=value (repeatable)")
	renderCmd.Flags().Bool("user-only", false, "Print only the user prompt")
	rootCmd.AddCommand(&renderCmd)

	rootCmd.AddCommand(&checkCmd)
	rootCmd.AddCommand(&inspectCmd)
	rootCmd.AddCommand(&listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
