package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stratusctl/stratus/internal/aws"
	"github.com/stratusctl/stratus/internal/config"
)

var (
	// Global flags
	profile  string
	region   string
	logLevel string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "stratus",
	Short: "Stratus - EC2 security group and classic ELB management",
	Long: `Stratus reconciles EC2 security group rules against declarative manifests
and manages instance registration on classic Elastic Load Balancers.

Security Groups:
  stratus sg sync web-sg.yaml    # Reconcile a group against its manifest
  stratus sg diff web-sg.yaml    # Show pending changes without touching anything
  stratus sg ls                  # List security groups

Load Balancers:
  stratus elb register i-0abc --lb web-lb   # Register and wait for InService
  stratus elb deregister i-0abc             # Deregister from every bound LB
  stratus elb health i-0abc                 # Per-LB instance health

Profiles:
  stratus use prod               # Persist a default AWS profile
  stratus status                 # Caller identity and effective settings`,
}

// Execute runs the root command. Interrupts cancel the command context so
// watch loops and convergence waits shut down cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "AWS profile to use")
	rootCmd.PersistentFlags().StringVarP(&region, "region", "r", "", "AWS region to use")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	_ = viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Read from environment variables (STRATUS_PROFILE, STRATUS_LOG_LEVEL, ...)
	viper.SetEnvPrefix("STRATUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	logger = newLogger(viper.GetString("log-level"))

	// Priority for profile: --profile flag > STRATUS_PROFILE > saved config > AWS_PROFILE
	profile = viper.GetString("profile")
	if profile == "" {
		if saved := config.GetSavedProfile(); saved != "" {
			profile = saved
		} else {
			profile = os.Getenv("AWS_PROFILE")
		}
	}

	// Same ordering for region, falling back to the AWS SDK's own variables
	region = viper.GetString("region")
	if region == "" {
		if cfg, err := config.LoadConfig(); err == nil && cfg.AWSRegion != "" {
			region = cfg.AWSRegion
		} else {
			region = os.Getenv("AWS_REGION")
			if region == "" {
				region = os.Getenv("AWS_DEFAULT_REGION")
			}
		}
	}
}

// newLogger creates a console zap logger at the given level. Logs go to
// stderr so table and JSON output on stdout stay clean.
func newLogger(level string) *zap.Logger {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	loggerConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(parsed),
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := loggerConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	return l
}

// newAWSClient builds a client honoring the global profile and region flags
func newAWSClient(ctx context.Context) (*aws.Client, error) {
	var opts []aws.ClientOption
	if profile != "" {
		opts = append(opts, aws.WithProfile(profile))
	}
	if region != "" {
		opts = append(opts, aws.WithRegion(region))
	}
	return aws.NewClient(ctx, opts...)
}
