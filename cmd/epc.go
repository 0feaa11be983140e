package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/travelsearch/internal/config"
	"github.com/sells-group/travelsearch/internal/db"
	"github.com/sells-group/travelsearch/internal/epc"
	"github.com/sells-group/travelsearch/internal/model"
)

var epcCmd = &cobra.Command{
	Use:   "epc",
	Short: "Manage learned earnings-per-click records",
}

var epcImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import period click and revenue totals produced by the learning job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openEPCStore(ctx, cfg.EPC)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return runEPCImport(ctx, st, args[0], cmd.OutOrStdout())
	},
}

var (
	epcShowProvider string
	epcShowVertical string
)

var epcShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the latest learned record for a provider and vertical",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openEPCStore(ctx, cfg.EPC)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return runEPCShow(ctx, st, epcShowProvider, epcShowVertical, cmd.OutOrStdout())
	},
}

func init() {
	epcShowCmd.Flags().StringVar(&epcShowProvider, "provider", "", "provider name")
	epcShowCmd.Flags().StringVar(&epcShowVertical, "vertical", "", "vertical")
	_ = epcShowCmd.MarkFlagRequired("provider")
	_ = epcShowCmd.MarkFlagRequired("vertical")

	epcCmd.AddCommand(epcImportCmd, epcShowCmd)
	rootCmd.AddCommand(epcCmd)
}

func openEPCStore(ctx context.Context, c config.EPCConfig) (epc.Store, error) {
	st, err := epc.Open(ctx, c.Driver, c.DatabaseURL, &db.PoolConfig{MaxConns: c.MaxConns, MinConns: c.MinConns})
	if err != nil {
		return nil, eris.Wrap(err, "open epc store")
	}
	return st, nil
}

func runEPCImport(ctx context.Context, st epc.Store, path string, w io.Writer) error {
	recs, err := epc.ReadImportFile(path)
	if err != nil {
		return err
	}
	n, err := st.UpsertMany(ctx, recs)
	if err != nil {
		return eris.Wrap(err, "import epc records")
	}

	zap.L().Info("epc import complete", zap.String("file", path), zap.Int("records", n))
	fmt.Fprintf(w, "imported %d records\n", n) //nolint:errcheck
	return nil
}

func runEPCShow(ctx context.Context, st epc.Reader, providerName, vertical string, w io.Writer) error {
	v, err := model.ParseVertical(vertical)
	if err != nil {
		return err
	}
	rec, err := st.Lookup(ctx, providerName, v)
	if err != nil {
		return eris.Wrap(err, "lookup epc record")
	}
	if rec == nil {
		fmt.Fprintf(w, "no record for %s/%s\n", providerName, v) //nolint:errcheck
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
