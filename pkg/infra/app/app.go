// Package app builds the cobra root command of a server binary.
//
// Configuration is layered, lowest first: flag defaults, the config file
// (<name>.yaml, ${VAR} references expanded), <NAME>_* environment variables
// and finally flags set on the command line.
//
//	app.NewApp(
//	    app.WithName("ragchat"),
//	    app.WithOptions(opts),
//	    app.WithRunFunc(run),
//	).Run()
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kart-io/ragchat/pkg/app/cliflag"
)

const configFlag = "config"

var envRef = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// App is a configured root command.
type App struct {
	name        string
	shortDesc   string
	description string
	options     CliOptions
	runFunc     RunFunc

	v   *viper.Viper
	cmd *cobra.Command
}

// RunFunc runs the application once options are loaded and validated.
type RunFunc func() error

// Option configures an App.
type Option func(*App)

// WithName sets the binary name. It also names the config file and the
// environment prefix.
func WithName(name string) Option {
	return func(a *App) { a.name = name }
}

// WithShortDescription sets the one-line help text.
func WithShortDescription(desc string) Option {
	return func(a *App) { a.shortDesc = desc }
}

// WithDescription sets the long help text.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithOptions sets the option groups loaded before run.
func WithOptions(opts CliOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the run function.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// NewApp creates the application and its root command.
func NewApp(opts ...Option) *App {
	a := &App{
		name: filepath.Base(os.Args[0]),
		v:    viper.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cmd = a.newCommand()
	return a
}

// Run executes the root command and exits non-zero on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the root command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

func (a *App) newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          a.name,
		Short:        a.shortDesc,
		Long:         a.description,
		RunE:         a.runCommand,
		SilenceUsage: true,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	pfs := cmd.PersistentFlags()
	pfs.StringP(configFlag, "c", "", "Path to config file (default: searched as "+a.name+".yaml)")
	version.AddFlags(pfs)

	if a.options == nil {
		return cmd
	}

	// 按分组添加 flag，help 输出也按分组打印
	fss := a.options.Flags()
	for _, name := range fss.Order {
		cmd.Flags().AddFlagSet(fss.FlagSets[name])
	}
	cmd.SetUsageFunc(func(c *cobra.Command) error {
		fmt.Fprintf(c.OutOrStderr(), "Usage:\n  %s\n", c.UseLine())
		cliflag.PrintSections(c.OutOrStderr(), fss, 0)
		return nil
	})
	return cmd
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	version.PrintAndExitIfRequested()

	if a.options != nil {
		if err := a.loadConfig(cmd); err != nil {
			return err
		}
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.runFunc == nil {
		return nil
	}
	return a.runFunc()
}

func (a *App) loadConfig(cmd *cobra.Command) error {
	if file, _ := cmd.Flags().GetString(configFlag); file != "" {
		a.v.SetConfigFile(file)
	} else {
		a.v.SetConfigName(a.name)
		a.v.SetConfigType("yaml")
		for _, dir := range configDirs(a.name) {
			a.v.AddConfigPath(dir)
		}
	}

	if err := a.v.ReadInConfig(); err != nil {
		// 没有配置文件时只用 flag 和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	expandEnvRefs(a.v)

	a.v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(a.name, "-", "_")))
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	// BindPFlags makes env vars visible for keys missing from the file.
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	changed := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	if err := a.v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// flags given on the command line win over file and env
	for name, val := range changed {
		if err := cmd.Flags().Set(name, val); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}
	return nil
}

func configDirs(name string) []string {
	return []string{
		".",
		"./configs",
		filepath.Join(os.Getenv("HOME"), "."+name),
		"/etc/" + name,
	}
}

// expandEnvRefs replaces ${VAR} and $VAR in string values. Unset variables
// are left as written.
func expandEnvRefs(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		expanded := envRef.ReplaceAllStringFunc(s, func(ref string) string {
			name := strings.TrimPrefix(ref, "$")
			name = strings.TrimSuffix(strings.TrimPrefix(name, "{"), "}")
			if val := os.Getenv(name); val != "" {
				return val
			}
			return ref
		})
		if expanded != s {
			v.Set(key, expanded)
		}
	}
}
