package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"face-door-lock/internal/db/repository"
	"face-door-lock/internal/util/timezone"

	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Manage the enrolled identities",
}

var enrollImportCmd = &cobra.Command{
	Use:   "import <encodings.json>",
	Short: "Import a trainer export of names and face encodings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := repository.ReadEnrollmentFile(args[0])
		if err != nil {
			return err
		}
		repo, err := openRepository()
		if err != nil {
			return err
		}
		res, err := repo.ImportEnrollment(e)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Printf("Imported %d encodings for %d identities (%d new) from %s\n", res.Encodings, res.Identities, res.Created, e.Source)
		return nil
	},
}

var enrollListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the enrolled identities",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository()
		if err != nil {
			return err
		}
		identities, err := repo.GetIdentities()
		if err != nil {
			return fmt.Errorf("failed to list identities: %w", err)
		}
		if len(identities) == 0 {
			fmt.Println("No identities enrolled.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tENCODINGS\tSOURCE\tCREATED")
		fmt.Fprintln(w, "----\t---------\t------\t-------")
		for _, identity := range identities {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", identity.Name, len(identity.Encodings), identity.Source,
				timezone.In(identity.CreatedAt).Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var enrollDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an identity and all its encodings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository()
		if err != nil {
			return err
		}
		if err := repo.DeleteIdentity(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted identity %s. Restart the service to apply.\n", args[0])
		return nil
	},
}

func init() {
	enrollCmd.AddCommand(enrollImportCmd, enrollListCmd, enrollDeleteCmd)
	rootCmd.AddCommand(enrollCmd)
}
