package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/audit"
	auditPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/audit/postgres"
	"github.com/spf13/cobra"
)

var exportOpts struct {
	out          string
	roleID       int64
	action       string
	resourceType string
	from         string
	to           string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the permission audit trail",
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit entries as CSV, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := exportFilter()
		if err != nil {
			return err
		}
		svc, closeFn, err := openAuditService()
		if err != nil {
			return err
		}
		defer closeFn()

		var out io.Writer = cmd.OutOrStdout()
		if exportOpts.out != "" && exportOpts.out != "-" {
			f, err := os.Create(exportOpts.out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOpts.out, err)
			}
			defer f.Close()
			out = f
		}

		n, err := svc.WriteCSV(cmd.Context(), filter, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %d audit entries\n", n)
		return nil
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openAuditService()
		if err != nil {
			return err
		}
		defer closeFn()

		report, err := svc.Verify(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if !report.Valid {
			return fmt.Errorf("audit chain broken at entry %d: %s", *report.FirstBrokenID, report.Reason)
		}
		return nil
	},
}

func init() {
	f := auditExportCmd.Flags()
	f.StringVarP(&exportOpts.out, "out", "o", "", "output file (default stdout)")
	f.Int64Var(&exportOpts.roleID, "role", 0, "only entries about this role id")
	f.StringVar(&exportOpts.action, "action", "", "only entries of this action kind")
	f.StringVar(&exportOpts.resourceType, "resource-type", "", "only entries about this resource type")
	f.StringVar(&exportOpts.from, "from", "", "earliest entry time, RFC 3339 or YYYY-MM-DD")
	f.StringVar(&exportOpts.to, "to", "", "latest entry time, RFC 3339 or YYYY-MM-DD (inclusive)")

	auditCmd.AddCommand(auditExportCmd)
	auditCmd.AddCommand(auditVerifyCmd)
}

func exportFilter() (audit.Filter, error) {
	filter := audit.Filter{
		ActionKind:   audit.Kind(exportOpts.action),
		ResourceType: exportOpts.resourceType,
	}
	if exportOpts.roleID > 0 {
		id := exportOpts.roleID
		filter.RoleID = &id
	}
	var err error
	if filter.From, err = audit.ParseBound(exportOpts.from, false); err != nil {
		return filter, fmt.Errorf("invalid --from: %w", err)
	}
	if filter.To, err = audit.ParseBound(exportOpts.to, true); err != nil {
		return filter, fmt.Errorf("invalid --to: %w", err)
	}
	return filter, nil
}

func openAuditService() (*audit.Service, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := setupLogger(cfg)

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init db: %w", err)
	}
	gormDB, err := initGorm(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	closeFn := func() { db.Close() }
	return audit.NewService(auditPostgres.NewAuditRepository(gormDB), lg), closeFn, nil
}
