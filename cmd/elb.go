package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratusctl/stratus/internal/aws"
	"github.com/stratusctl/stratus/internal/config"
	"github.com/stratusctl/stratus/internal/ui"
	"github.com/stratusctl/stratus/pkg/converge"
	"github.com/stratusctl/stratus/pkg/types"
)

var elbCmd = &cobra.Command{
	Use:   "elb",
	Short: "Manage classic load balancer instance bindings",
	Long:  `Register and deregister EC2 instances on classic Elastic Load Balancers and watch the bindings converge.`,
}

var elbRegisterCmd = &cobra.Command{
	Use:   "register <instance-id>",
	Short: "Register an instance with load balancers",
	Long: `Register an instance with each named classic load balancer and wait until
it is InService. With no --lb an interactive selector is shown.

Examples:
  stratus elb register i-0abc123 --lb web-lb
  stratus elb register i-0abc123 --lb web-lb --lb api-lb
  stratus elb register i-0abc123 --lb web-lb --enable-az
  stratus elb register i-0abc123 --lb web-lb --wait=false
  stratus elb register i-0abc123 --lb web-lb --timeout 10m`,
	Args: cobra.ExactArgs(1),
	RunE: runELBRegister,
}

var elbDeregisterCmd = &cobra.Command{
	Use:   "deregister <instance-id>",
	Short: "Deregister an instance from load balancers",
	Long: `Deregister an instance and wait until it is out of service. With no --lb
every load balancer currently carrying the instance is used. An instance
that belongs to an auto scaling group is refused without --force, because
the group would register it right back.

Examples:
  stratus elb deregister i-0abc123
  stratus elb deregister i-0abc123 --lb web-lb
  stratus elb deregister i-0abc123 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runELBDeregister,
}

var elbHealthCmd = &cobra.Command{
	Use:   "health <instance-id>",
	Short: "Show instance health per load balancer",
	Long: `Show the instance's health on each named load balancer, or on every load
balancer carrying it when no --lb is given.

Examples:
  stratus elb health i-0abc123
  stratus elb health i-0abc123 --lb web-lb`,
	Args: cobra.ExactArgs(1),
	RunE: runELBHealth,
}

var elbLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List classic load balancers",
	RunE:  runELBList,
}

var (
	// Flags shared by register/deregister/health
	elbNames    []string
	elbWait     bool
	elbTimeout  time.Duration
	elbEnableAZ bool
	elbDryRun   bool
	elbForce    bool
	elbJSON     bool
)

func init() {
	rootCmd.AddCommand(elbCmd)
	elbCmd.AddCommand(elbRegisterCmd)
	elbCmd.AddCommand(elbDeregisterCmd)
	elbCmd.AddCommand(elbHealthCmd)
	elbCmd.AddCommand(elbLsCmd)

	for _, c := range []*cobra.Command{elbRegisterCmd, elbDeregisterCmd} {
		c.Flags().StringArrayVar(&elbNames, "lb", nil, "load balancer name (repeatable)")
		c.Flags().BoolVar(&elbWait, "wait", true, "wait for the binding to converge")
		c.Flags().DurationVar(&elbTimeout, "timeout", 300*time.Second, "how long to wait for convergence")
		c.Flags().BoolVar(&elbDryRun, "dry-run", false, "report what would happen without mutating anything")
		c.Flags().BoolVar(&elbJSON, "json", false, "print the result as JSON")
	}
	elbRegisterCmd.Flags().BoolVar(&elbEnableAZ, "enable-az", false, "enable the instance's availability zone on the load balancer first")
	elbDeregisterCmd.Flags().BoolVar(&elbForce, "force", false, "deregister even when the instance belongs to an auto scaling group")
	elbHealthCmd.Flags().StringArrayVar(&elbNames, "lb", nil, "load balancer name (repeatable)")
}

// resolveTimeout applies the saved converge timeout when --timeout was not
// given on the command line.
func resolveTimeout(cmd *cobra.Command) {
	if cmd.Flags().Changed("timeout") {
		return
	}
	if cfg, err := config.LoadConfig(); err == nil {
		if d := cfg.ConvergeTimeoutValue(); d > 0 {
			elbTimeout = d
		}
	}
}

func runELBRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := newAWSClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create AWS client: %w", err)
	}
	resolveTimeout(cmd)

	instanceID := args[0]
	names := elbNames
	if len(names) == 0 {
		lbs, err := client.ListLoadBalancers(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to list load balancers: %w", err)
		}
		selected, err := ui.SelectLoadBalancer(lbs)
		if err != nil {
			return err
		}
		names = []string{selected.Name}
	}

	return convergeBindings(ctx, client, instanceID, names, converge.Register)
}

func runELBDeregister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := newAWSClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create AWS client: %w", err)
	}
	resolveTimeout(cmd)

	instanceID := args[0]
	if !elbForce {
		asgName, err := client.InstanceAutoScalingGroup(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("failed to check auto scaling membership: %w", err)
		}
		if asgName != "" {
			return fmt.Errorf("instance %s belongs to auto scaling group %s, which will register it again; use --force to deregister anyway", instanceID, asgName)
		}
	}

	names := elbNames
	if len(names) == 0 {
		bindings, err := converge.DiscoverBindings(ctx, client, instanceID, nil)
		if err != nil {
			return fmt.Errorf("failed to discover load balancers: %w", err)
		}
		if len(bindings) == 0 {
			if elbJSON {
				return printELBResult(elbResult{Changed: false, BoundLoadBalancers: []string{}})
			}
			fmt.Printf("Instance %s is not registered with any load balancer\n", instanceID)
			return nil
		}
		for _, b := range bindings {
			names = append(names, b.LoadBalancerName)
		}
	}

	return convergeBindings(ctx, client, instanceID, names, converge.Deregister)
}

func runELBHealth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := newAWSClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create AWS client: %w", err)
	}

	instanceID := args[0]
	names := elbNames
	if len(names) == 0 {
		bindings, err := converge.DiscoverBindings(ctx, client, instanceID, nil)
		if err != nil {
			return fmt.Errorf("failed to discover load balancers: %w", err)
		}
		if len(bindings) == 0 {
			fmt.Printf("Instance %s is not registered with any load balancer\n", instanceID)
			return nil
		}
		for _, b := range bindings {
			names = append(names, b.LoadBalancerName)
		}
	}

	rows := make([]ui.HealthRow, 0, len(names))
	for _, name := range names {
		state, err := client.InstanceHealth(ctx, name, instanceID)
		if err != nil {
			return fmt.Errorf("failed to describe instance health on %s: %w", name, err)
		}
		rows = append(rows, ui.HealthRow{LoadBalancer: name, InstanceID: instanceID, State: state})
	}

	ui.PrintHealthTable(rows)
	return nil
}

func runELBList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := newAWSClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create AWS client: %w", err)
	}

	lbs, err := client.ListLoadBalancers(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to list load balancers: %w", err)
	}

	if len(lbs) == 0 {
		fmt.Println("No load balancers found")
		return nil
	}

	ui.PrintLoadBalancerTable(lbs)
	return nil
}

// elbResult is the machine-readable outcome of a register or deregister run.
// BoundLoadBalancers lists, in name order, the load balancers the instance
// is bound to after the operation.
type elbResult struct {
	Changed            bool     `json:"changed"`
	BoundLoadBalancers []string `json:"bound_load_balancers"`
}

// convergeBindings runs one convergence wait per load balancer, each with
// its own deadline. Bindings fail independently; the remaining ones still
// run.
func convergeBindings(ctx context.Context, client *aws.Client, instanceID string, names []string, dir converge.Direction) error {
	waiter := converge.NewWaiter(client, client,
		converge.WithLogger(logger),
		converge.WithDryRun(elbDryRun),
	)
	opts := converge.Options{
		Wait:       elbWait,
		Timeout:    elbTimeout,
		EnableZone: elbEnableAZ,
	}

	changed := false
	var errs []error
	for _, name := range names {
		binding := types.LoadBalancerBinding{LoadBalancerName: name, InstanceID: instanceID}
		res, err := waiter.Converge(ctx, binding, dir, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		changed = changed || res.Changed
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	bound, err := converge.DiscoverBindings(ctx, client, instanceID, nil)
	if err != nil {
		return fmt.Errorf("failed to list load balancers: %w", err)
	}
	boundNames := make([]string, 0, len(bound))
	for _, b := range bound {
		boundNames = append(boundNames, b.LoadBalancerName)
	}

	return printELBResult(elbResult{Changed: changed, BoundLoadBalancers: boundNames})
}

func printELBResult(result elbResult) error {
	if elbJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	if result.Changed {
		fmt.Println("Bindings changed")
	} else {
		fmt.Println("Bindings already converged")
	}
	if len(result.BoundLoadBalancers) == 0 {
		fmt.Println("Bound to: (none)")
	} else {
		fmt.Printf("Bound to: %s\n", strings.Join(result.BoundLoadBalancers, ", "))
	}
	return nil
}
