package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/formforge/formforge/internal/api"
	"github.com/formforge/formforge/internal/config"
	"github.com/formforge/formforge/internal/services"
)

// seedCmd loads a demo account with a published contact form and a couple
// of submissions, handy for trying the builder against real data.
func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert a demo user, form and submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("seed requires a db_path")
			}
			store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			return seed(store, logger)
		},
	}
}

func seed(store api.Store, logger *zap.Logger) error {
	router := api.NewRouter(store, logger)
	res, err := router.Auth().Register("admin@example.com", "admin123")
	if err != nil {
		if se, ok := services.AsServiceError(err); ok && se.Code == services.ErrorConflict {
			logger.Info("demo user already present, skipping seed")
			return nil
		}
		return err
	}

	forms := router.Forms()
	form, err := forms.Create(res.UserID, "Contact Us", "We'd love to hear from you. Drop us a line below.")
	if err != nil {
		return err
	}

	fs := services.NewFieldSet(nil)
	name := fs.Add(services.FieldText)
	fs.SetLabel(name, "Full Name")
	fs.SetPlaceholder(name, "Jane Doe")
	fs.SetRequired(name, true)
	email := fs.Add(services.FieldEmail)
	fs.SetPlaceholder(email, "jane@example.com")
	fs.SetRequired(email, true)
	message := fs.Add(services.FieldTextarea)
	fs.SetLabel(message, "Message")
	fs.SetPlaceholder(message, "How can we help?")
	fs.SetRequired(message, true)
	if err := forms.SaveFields(res.UserID, form.ID, fs.Fields()); err != nil {
		return err
	}
	if err := forms.SetPublished(res.UserID, form.ID, true); err != nil {
		return err
	}

	detail, err := forms.Get(res.UserID, form.ID)
	if err != nil {
		return err
	}
	byLabel := map[string]string{}
	for _, f := range detail.Fields {
		byLabel[f.Label] = f.ID
	}
	subs := router.Submissions()
	demo := []map[string]string{
		{
			byLabel["Full Name"]:     "Alice Smith",
			byLabel["Email Address"]: "alice@example.com",
			byLabel["Message"]:       "Great product, just wanted to say hi!",
		},
		{
			byLabel["Full Name"]:     "Bob Jones",
			byLabel["Email Address"]: "bob@example.com",
			byLabel["Message"]:       "I have a question about pricing.",
		},
	}
	for _, values := range demo {
		if _, err := subs.Submit(form.Slug, values); err != nil {
			return err
		}
	}
	logger.Info("seeded demo data",
		zap.String("user", "admin@example.com"),
		zap.String("form", form.ID),
		zap.String("slug", form.Slug))
	return nil
}
