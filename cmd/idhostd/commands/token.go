package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/idhost/internal/adminapi"
	"github.com/marmos91/idhost/internal/config"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the admin API",
	Long: `Mint a signed bearer token for this node's admin API, using the
configured admin.jwt.secret. Pass the token in the "Authorization: Bearer
<token>" header against the admin API's protected endpoints.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Subject claim for the issued token")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	srv, err := adminapi.New(adminapi.Config{
		Port:      cfg.Admin.Port,
		JWTSecret: cfg.Admin.JWT.Secret,
		JWTTTL:    cfg.Admin.JWT.TTL,
	}, adminapi.Deps{})
	if err != nil {
		return fmt.Errorf("failed to build admin API signer: %w", err)
	}

	token, expiresAt, err := srv.IssueToken(tokenSubject)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Println(token)
	fmt.Printf("expires: %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
