package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stratusctl/stratus/internal/aws"
	"github.com/stratusctl/stratus/internal/config"
	"github.com/stratusctl/stratus/internal/ui"
	"github.com/stratusctl/stratus/pkg/provider"
	"github.com/stratusctl/stratus/pkg/reconcile"
	"github.com/stratusctl/stratus/pkg/types"
)

var sgCmd = &cobra.Command{
	Use:   "sg",
	Short: "Manage EC2 security groups",
	Long:  `Reconcile, inspect and delete EC2 security groups using declarative rule manifests.`,
}

var sgSyncCmd = &cobra.Command{
	Use:   "sync <manifest>",
	Short: "Reconcile a security group against a manifest",
	Long: `Reconcile a security group's rules against a YAML manifest. The group is
created when missing; each declared direction is diffed and converged, and
grants not in the manifest are revoked unless --purge=false.

Manifest sources:
  web-sg.yaml                local file
  ssm:///stratus/web-sg      SSM parameter (decrypted)
  sm://stratus/web-sg        Secrets Manager secret

Examples:
  stratus sg sync web-sg.yaml
  stratus sg sync web-sg.yaml --dry-run
  stratus sg sync web-sg.yaml --purge=false
  stratus sg sync ssm:///stratus/web-sg
  stratus sg sync web-sg.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runSGSync,
}

var sgDiffCmd = &cobra.Command{
	Use:   "diff <manifest>",
	Short: "Show the changes a sync would make",
	Long: `Diff a security group's current rules against a manifest and print the
plan. Nothing is ever mutated.

Examples:
  stratus sg diff web-sg.yaml
  stratus sg diff ssm:///stratus/web-sg`,
	Args: cobra.ExactArgs(1),
	RunE: runSGDiff,
}

var sgLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List security groups",
	Long: `List security groups with their rule counts.

Examples:
  stratus sg ls                  # All groups
  stratus sg ls --vpc vpc-0abc   # Groups in one VPC`,
	RunE: runSGList,
}

var sgRmCmd = &cobra.Command{
	Use:   "rm [name-or-id]",
	Short: "Delete a security group",
	Long: `Delete a security group by name or id. With no argument an interactive
selector is shown.

Examples:
  stratus sg rm web-sg
  stratus sg rm sg-0123456789abcdef0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSGRemove,
}

var (
	// Flags for sg sync
	sgSyncPurge  bool
	sgSyncDryRun bool
	sgSyncWatch  bool
	sgSyncJSON   bool
	// Flags for sg ls
	sgLsVPC string
)

// manifestReloadDelay debounces editor save bursts in watch mode
const manifestReloadDelay = 500 * time.Millisecond

func init() {
	rootCmd.AddCommand(sgCmd)
	sgCmd.AddCommand(sgSyncCmd)
	sgCmd.AddCommand(sgDiffCmd)
	sgCmd.AddCommand(sgLsCmd)
	sgCmd.AddCommand(sgRmCmd)

	sgSyncCmd.Flags().BoolVar(&sgSyncPurge, "purge", true, "revoke grants not declared in the manifest")
	sgSyncCmd.Flags().BoolVar(&sgSyncDryRun, "dry-run", false, "plan and log changes without mutating anything")
	sgSyncCmd.Flags().BoolVar(&sgSyncWatch, "watch", false, "keep running and re-sync when the manifest file changes")
	sgSyncCmd.Flags().BoolVar(&sgSyncJSON, "json", false, "print the result as JSON")
	sgLsCmd.Flags().StringVar(&sgLsVPC, "vpc", "", "limit to one VPC")
}

func runSGSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := newAWSClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create AWS client: %w", err)
	}

	source := args[0]
	if sgSyncWatch {
		if isRemoteSource(source) {
			return fmt.Errorf("--watch only works with file manifests")
		}
		return watchManifest(ctx, client, source)
	}

	m, err := fetchManifest(ctx, client, source)
	if err != nil {
		return err
	}

	result, err := syncGroup(ctx, client, m)
	if err != nil {
		return err
	}
	return printSyncResult(result)
}

func runSGDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := newAWSClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create AWS client: %w", err)
	}

	m, err := fetchManifest(ctx, client, args[0])
	if err != nil {
		return err
	}

	groups, err := client.ListGroups(ctx, m.Group.VPCID)
	if err != nil {
		return fmt.Errorf("failed to list security groups: %w", err)
	}
	snap := types.NewGroupSnapshot(groups)

	group, ok := snap.ByName(m.Group.Name)
	if !ok {
		fmt.Printf("group %s does not exist; sync would create it\n", m.Group.Name)
		group = types.Group{Name: m.Group.Name, VPCID: m.Group.VPCID}
	}

	r := reconcile.NewReconciler(client, reconcile.WithLogger(logger))

	var adds, removes []types.Grant
	for _, dir := range []types.Direction{types.DirectionIngress, types.DirectionEgress} {
		rules, declared := manifestRules(m, dir)
		if !declared {
			continue
		}
		plan, err := r.Plan(group, rules, group.Grants(dir), snap)
		if err != nil {
			return fmt.Errorf("%s: %w", dir, err)
		}
		adds = append(adds, plan.Add...)
		removes = append(removes, plan.Remove...)
	}

	ui.PrintDiffTable(adds, removes)
	return nil
}

func runSGList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := newAWSClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create AWS client: %w", err)
	}

	groups, err := client.ListGroups(ctx, sgLsVPC)
	if err != nil {
		return fmt.Errorf("failed to list security groups: %w", err)
	}

	if len(groups) == 0 {
		fmt.Println("No security groups found")
		return nil
	}

	ui.PrintGroupTable(groups)
	return nil
}

func runSGRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := newAWSClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create AWS client: %w", err)
	}

	groups, err := client.ListGroups(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list security groups: %w", err)
	}
	snap := types.NewGroupSnapshot(groups)

	var group types.Group
	if len(args) > 0 {
		var ok bool
		group, ok = snap.ByID(args[0])
		if !ok {
			group, ok = snap.ByName(args[0])
		}
		if !ok {
			return fmt.Errorf("security group %s not found", args[0])
		}
	} else {
		selected, err := ui.SelectGroup(groups)
		if err != nil {
			return err
		}
		group = *selected
	}

	if err := client.DeleteGroup(ctx, group.ID); err != nil {
		if errors.Is(err, provider.ErrDependencyViolation) {
			return fmt.Errorf("cannot delete %s: %w", group.ID, err)
		}
		return err
	}

	fmt.Printf("Deleted security group %s (%s)\n", group.Name, group.ID)
	return nil
}

// syncResult is the machine-readable outcome of one sync run. GroupID is
// null when the group does not exist yet, which only happens in a dry run
// that would create it.
type syncResult struct {
	Changed bool    `json:"changed"`
	GroupID *string `json:"group_id"`
}

// syncGroup ensures the manifest's group exists and reconciles each declared
// direction. Directions fail independently; one failing does not stop the
// other.
func syncGroup(ctx context.Context, client *aws.Client, m *config.Manifest) (syncResult, error) {
	group, snap, created, err := ensureGroup(ctx, client, m)
	if err != nil {
		return syncResult{}, err
	}

	r := reconcile.NewReconciler(client,
		reconcile.WithLogger(logger),
		reconcile.WithPurge(sgSyncPurge),
		reconcile.WithDryRun(sgSyncDryRun),
	)

	changed := created
	var errs []error
	for _, dir := range []types.Direction{types.DirectionIngress, types.DirectionEgress} {
		rules, declared := manifestRules(m, dir)
		if !declared {
			continue
		}
		res, err := r.Reconcile(ctx, group, rules, group.Grants(dir), snap)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dir, err))
		}
		changed = changed || res.Changed
	}

	result := syncResult{Changed: changed}
	if group.ID != "" {
		result.GroupID = &group.ID
	}
	return result, errors.Join(errs...)
}

// ensureGroup finds the manifest's group, creating it when missing. It
// returns a snapshot that includes the group so name peers and self
// references resolve.
func ensureGroup(ctx context.Context, client *aws.Client, m *config.Manifest) (types.Group, types.GroupSnapshot, bool, error) {
	groups, err := client.ListGroups(ctx, m.Group.VPCID)
	if err != nil {
		return types.Group{}, types.GroupSnapshot{}, false, fmt.Errorf("failed to list security groups: %w", err)
	}
	snap := types.NewGroupSnapshot(groups)

	if group, ok := snap.ByName(m.Group.Name); ok {
		return group, snap, false, nil
	}

	if sgSyncDryRun {
		logger.Info("would create security group",
			zap.String("group", m.Group.Name),
			zap.String("vpc", m.Group.VPCID))
		placeholder := types.Group{Name: m.Group.Name, Description: m.Group.Description, VPCID: m.Group.VPCID}
		return placeholder, snap, true, nil
	}

	group, err := client.CreateGroup(ctx, m.Group.Name, m.Group.Description, m.Group.VPCID)
	if err != nil {
		return types.Group{}, types.GroupSnapshot{}, false, fmt.Errorf("failed to create security group: %w", err)
	}
	logger.Info("created security group",
		zap.String("group", group.Name),
		zap.String("id", group.ID))

	groups, err = client.ListGroups(ctx, m.Group.VPCID)
	if err != nil {
		return types.Group{}, types.GroupSnapshot{}, false, fmt.Errorf("failed to list security groups: %w", err)
	}
	return group, types.NewGroupSnapshot(groups), true, nil
}

func manifestRules(m *config.Manifest, dir types.Direction) ([]types.Rule, bool) {
	if dir == types.DirectionEgress {
		return m.EgressRules()
	}
	return m.IngressRules()
}

func isRemoteSource(source string) bool {
	return strings.HasPrefix(source, "ssm://") || strings.HasPrefix(source, "sm://")
}

// fetchManifest loads a manifest from a file path, an ssm:// parameter or
// an sm:// secret
func fetchManifest(ctx context.Context, client *aws.Client, source string) (*config.Manifest, error) {
	switch {
	case strings.HasPrefix(source, "ssm://"):
		value, err := client.GetParameter(ctx, strings.TrimPrefix(source, "ssm://"))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch manifest from SSM: %w", err)
		}
		return config.ParseManifest([]byte(value))

	case strings.HasPrefix(source, "sm://"):
		value, err := client.GetSecretValue(ctx, strings.TrimPrefix(source, "sm://"))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch manifest from Secrets Manager: %w", err)
		}
		return config.ParseManifest([]byte(value))

	default:
		return config.LoadManifest(source)
	}
}

// watchManifest re-syncs on every manifest change until the context is
// cancelled. The parent directory is watched because editors replace files
// on save, which would orphan a watch on the file itself.
func watchManifest(ctx context.Context, client *aws.Client, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logger.Info("watching manifest", zap.String("path", path))

	if err := syncFromFile(ctx, client, path); err != nil {
		logger.Error("sync failed", zap.Error(err))
	}

	target := filepath.Clean(path)
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug("manifest changed", zap.String("op", event.Op.String()))
			debounce = time.After(manifestReloadDelay)

		case <-debounce:
			debounce = nil
			if err := syncFromFile(ctx, client, path); err != nil {
				logger.Error("sync failed", zap.Error(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", zap.Error(err))
		}
	}
}

func syncFromFile(ctx context.Context, client *aws.Client, path string) error {
	m, err := config.LoadManifest(path)
	if err != nil {
		return err
	}
	result, err := syncGroup(ctx, client, m)
	if err != nil {
		return err
	}
	return printSyncResult(result)
}

func printSyncResult(result syncResult) error {
	if sgSyncJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	id := "(pending create)"
	if result.GroupID != nil {
		id = *result.GroupID
	}
	if result.Changed {
		fmt.Printf("group %s changed\n", id)
	} else {
		fmt.Printf("group %s up to date\n", id)
	}
	return nil
}
