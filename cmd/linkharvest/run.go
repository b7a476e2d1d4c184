package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/joshsymonds/linkharvest/internal/auth"
	"github.com/joshsymonds/linkharvest/internal/config"
	"github.com/joshsymonds/linkharvest/internal/harvest"
	"github.com/joshsymonds/linkharvest/internal/rate"
	"github.com/joshsymonds/linkharvest/internal/runtime"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Harvest tracking links from unread messages",
		Long: `Authorize (prompting for a code on first use), then repeatedly list unread
messages under the label, extract one link per message, mark each page read,
and finally write the links, one per thread, to the output file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarvestCmd(cmd, opts)
		},
	}
}

func runHarvestCmd(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := newLogger(opts)
	authorizer, err := newAuthorizer(cfg, logger)
	if err != nil {
		return err
	}
	_, err = runHarvest(cmd.Context(), cfg, authorizer, logger)
	return err
}

func newAuthorizer(cfg *config.Config, logger *slog.Logger) (*auth.Authorizer, error) {
	oauthCfg, err := auth.LoadConfig(cfg.CredentialsFile, auth.Scopes...)
	if err != nil {
		return nil, err
	}
	store := auth.FileTokenStore{Path: cfg.TokenFile}
	return auth.NewAuthorizer(oauthCfg, store, auth.NewConsolePrompter(), logger), nil
}

// runHarvest authorizes and drains the label. gmailOpts are passed to the
// Gmail service after the authorized HTTP client.
func runHarvest(
	ctx context.Context,
	cfg *config.Config,
	authorizer *auth.Authorizer,
	logger *slog.Logger,
	gmailOpts ...option.ClientOption,
) (harvest.Result, error) {
	hc, err := authorizer.Authorize(ctx)
	if err != nil {
		return harvest.Result{}, fmt.Errorf("authorize: %w", err)
	}
	client, err := runtime.NewGmailClient(ctx, hc, gmailOpts...)
	if err != nil {
		return harvest.Result{}, err
	}
	extractor, err := harvest.NewExtractor(cfg.Pattern)
	if err != nil {
		return harvest.Result{}, err
	}

	svc := harvest.NewService(client, rate.New(cfg.RPS), logger, extractor, harvest.FileWriter{Path: cfg.OutputFile})
	res, err := svc.Run(ctx, harvest.Spec{Label: cfg.Label, PageSize: cfg.PageSize})
	if err != nil {
		return harvest.Result{}, fmt.Errorf("run harvest: %w", err)
	}
	return res, nil
}
