package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/idhost/internal/cli/output"
	"github.com/marmos91/idhost/internal/cli/prompt"
	"github.com/marmos91/idhost/internal/config"
	"github.com/marmos91/idhost/internal/store"
)

var identityCancelForce bool

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Inspect and administer hosted identities",
}

var identityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every hosted identity row",
	Long: `List every row in the hosted-identity table, including rows
pending sweep after a cancellation.`,
	RunE: runIdentityList,
}

var identityShowCmd = &cobra.Command{
	Use:   "show <identity-id>",
	Short: "Show a single hosted identity's profile fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentityShow,
}

var identityCancelCmd = &cobra.Command{
	Use:   "cancel <identity-id>",
	Short: "Administratively cancel a hosted identity's contract",
	Long: `Set ExpirationDate = now on the given identity, the same
immediate-deletion path CancelHosting takes without a redirect.
Requires interactive confirmation unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentityCancel,
}

func init() {
	identityCancelCmd.Flags().BoolVar(&identityCancelForce, "force", false, "Skip the interactive confirmation prompt")

	identityCmd.AddCommand(identityListCmd)
	identityCmd.AddCommand(identityShowCmd)
	identityCmd.AddCommand(identityCancelCmd)
	rootCmd.AddCommand(identityCmd)
}

func openStoreForCLI() (*store.Store, *config.Config, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	return st, cfg, nil
}

// identityRows adapts store.Identity to output.TableRenderer for
// "identity list".
type identityRows []store.Identity

func (identityRows) Headers() []string {
	return []string{"Identity ID", "Name", "Type", "Version", "Hosted", "Home Node"}
}

func (rows identityRows) Rows() [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		hosted := "yes"
		if !row.Hosted() {
			hosted = "no (expires " + row.ExpirationDate.Format(time.RFC3339) + ")"
		}
		homeNode := row.HomeNodeID
		if homeNode == "" {
			homeNode = "-"
		}
		version := strconv.Itoa(int(row.VersionMaj)) + "." + strconv.Itoa(int(row.VersionMin)) + "." + strconv.Itoa(int(row.VersionPat))
		out = append(out, []string{row.IdentityID, row.Name, row.Type, version, hosted, homeNode})
	}
	return out
}

func runIdentityList(cmd *cobra.Command, args []string) error {
	st, _, err := openStoreForCLI()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rows, err := st.ListHosted(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}
	if len(rows) == 0 {
		fmt.Println("no hosted identities")
		return nil
	}
	return output.PrintTable(os.Stdout, identityRows(rows))
}

func runIdentityShow(cmd *cobra.Command, args []string) error {
	st, _, err := openStoreForCLI()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	row, err := st.GetByID(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load identity %s: %w", args[0], err)
	}

	pairs := [][2]string{
		{"Identity ID", row.IdentityID},
		{"Name", row.Name},
		{"Type", row.Type},
		{"Version", strconv.Itoa(int(row.VersionMaj)) + "." + strconv.Itoa(int(row.VersionMin)) + "." + strconv.Itoa(int(row.VersionPat))},
		{"Initialized", strconv.FormatBool(row.Initialized())},
		{"Hosted", strconv.FormatBool(row.Hosted())},
		{"Has location", strconv.FormatBool(row.HasLocation)},
	}
	if row.HasLocation {
		pairs = append(pairs,
			[2]string{"Latitude (µdeg)", strconv.FormatInt(row.LatitudeE6, 10)},
			[2]string{"Longitude (µdeg)", strconv.FormatInt(row.LongitudeE6, 10)},
		)
	}
	if row.HomeNodeID != "" {
		pairs = append(pairs, [2]string{"Redirect home node", row.HomeNodeID})
	}
	if row.ExpirationDate != nil {
		pairs = append(pairs, [2]string{"Expiration", row.ExpirationDate.Format(time.RFC3339)})
	}
	return output.SimpleTable(os.Stdout, pairs)
}

func runIdentityCancel(cmd *cobra.Command, args []string) error {
	st, _, err := openStoreForCLI()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	id := args[0]
	if _, err := st.GetByID(context.Background(), id); err != nil {
		return fmt.Errorf("failed to load identity %s: %w", id, err)
	}

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Cancel hosting contract for %s", id), identityCancelForce)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("aborted")
		return nil
	}

	if _, err := st.Cancel(context.Background(), id, "", nil); err != nil {
		return fmt.Errorf("failed to cancel identity %s: %w", id, err)
	}
	fmt.Printf("identity %s cancelled\n", id)
	return nil
}
