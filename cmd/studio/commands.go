package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"

	"github.com/and161185/outfit-studio/internal/config"
	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/imaging"
	"github.com/and161185/outfit-studio/internal/model"
	"github.com/and161185/outfit-studio/internal/prompt"
	"github.com/and161185/outfit-studio/internal/studio"
)

func newRootCmd(d deps) *cobra.Command {
	v := config.New()
	var (
		cfgFile string
		a       *app
	)

	root := &cobra.Command{
		Use:           "outfit-studio",
		Short:         "Outfit Studio: AI fashion photography from garment photos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsBackend(cmd) {
				return nil
			}
			if err := config.LoadDotEnv(d.dotenv...); err != nil {
				return err
			}
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			log, err := d.newLogger(cfg.Dev)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			a, err = open(cmd.Context(), cfg, log)
			if err != nil {
				_ = log.Sync()
				return err
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.String(config.KeyBackend, "", "storage backend: local or remote")
	pf.String(config.KeyDataDir, "", "directory for local slots and the session token")
	pf.String(config.KeyDSN, "", "PostgreSQL DSN for the remote backend")
	pf.String(config.KeyJWTKey, "", "HS256 session signing key for the remote backend")
	pf.Duration(config.KeySessionTTL, 0, "remote session lifetime")
	pf.String(config.KeyModel, "", "image model name")
	pf.String(config.KeyClientID, "", "device identifier used by the sign-in limiter")
	pf.Bool(config.KeyDev, false, "development logging")
	_ = v.BindPFlags(pf)

	getApp := func() *app { return a }
	root.AddCommand(
		newVersionCmd(),
		newRegisterCmd(getApp),
		newLoginCmd(getApp),
		newLogoutCmd(getApp),
		newWhoamiCmd(getApp),
		newGenerateCmd(getApp, d),
		newLibraryCmd(getApp),
		newRmCmd(getApp),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "outfit-studio %s (%s)\n", version, buildDate)
		},
	}
}

func newRegisterCmd(getApp func() *app) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordFrom(cmd, password)
			if err != nil {
				return err
			}
			acc, err := getApp().gw.Register(cmd.Context(), username, email, pw)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s <%s> (%s)\n", acc.Username, acc.Email, acc.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	return cmd
}

func newLoginCmd(getApp func() *app) *cobra.Command {
	var identifier, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with username or email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordFrom(cmd, password)
			if err != nil {
				return err
			}
			acc, err := getApp().gw.Login(cmd.Context(), identifier, pw)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", acc.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&identifier, "user", "u", "", "username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	return cmd
}

func newLogoutCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := getApp().gw.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoamiCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Run: func(cmd *cobra.Command, _ []string) {
			acc := getApp().gw.CurrentSession()
			if acc == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", acc.Username, acc.Email)
		},
	}
}

func newGenerateCmd(getApp func() *app, d deps) *cobra.Command {
	var (
		mode, garment, description string
		modelSpec, pose, modelImg  string
		out                        string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a photo of a garment",
		Example: `outfit-studio generate --mode ai-model --garment coat.jpg \
  --description "camel wool overcoat" --model-spec "tall man, 30s" --pose "walking"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			m, err := model.ParseMode(mode)
			if err != nil {
				return err
			}
			sub := model.Submission{
				Mode:               m,
				GarmentDescription: description,
				ModelSpec:          modelSpec,
				Pose:               pose,
			}
			if sub.GarmentImage, err = readImage(garment); err != nil {
				return fmt.Errorf("garment image: %w", err)
			}
			if m == model.ModeCustomModel {
				if sub.ModelImage, err = readImage(modelImg); err != nil {
					return fmt.Errorf("model image: %w", err)
				}
			}

			gen, err := d.newGenerator(cmd.Context(), a.cfg, a.log.Named("genclient"))
			if err != nil {
				return describe(err)
			}
			st := studio.New(prompt.NewAssembler(imaging.NewNormalizer()), gen, a.gw, a.gw, a.log.Named("studio"))

			fmt.Fprintln(cmd.ErrOrStderr(), prompt.ModeNote(m))
			res, err := st.Submit(cmd.Context(), sub)
			if err != nil {
				return describe(err)
			}
			if err := writeDataURL(out, res.ImageURL); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "image written to %s\n", out)
			if res.SaveErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: not saved to library: %v\n", res.SaveErr)
			} else if res.Project != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "saved as project %s\n", res.Project.ID)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&mode, "mode", "m", string(model.ModeAIModel), "ai-model, custom-model or flat-lay")
	f.StringVarP(&garment, "garment", "g", "", "garment photo path or data: URL")
	f.StringVarP(&description, "description", "d", "", "garment description")
	f.StringVar(&modelSpec, "model-spec", "", "model details (ai-model)")
	f.StringVar(&pose, "pose", "", "pose (ai-model)")
	f.StringVar(&modelImg, "model-image", "", "photo of the person to dress (custom-model)")
	f.StringVarP(&out, "out", "o", "outfit.png", "output image path")
	return cmd
}

func newLibraryCmd(getApp func() *app) *cobra.Command {
	var export string
	cmd := &cobra.Command{
		Use:   "library",
		Short: "List saved projects, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			acc := a.gw.CurrentSession()
			if acc == nil {
				return describe(errs.ErrUnauthorized)
			}
			projects, err := a.gw.ListProjects(cmd.Context(), acc.ID)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects yet")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tMODE\tDESCRIPTION")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.CreatedAt.Local().Format(time.DateTime), p.Mode, p.GarmentDescription)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if export == "" {
				return nil
			}
			if err := os.MkdirAll(export, 0o755); err != nil {
				return err
			}
			for _, p := range projects {
				if err := writeDataURL(filepath.Join(export, p.ID.String()+".png"), p.ImageURL); err != nil {
					a.log.Warn("export failed", zap.String("project", p.ID.String()), zap.Error(err))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&export, "export", "", "write every project image into this directory")
	return cmd
}

func newRmCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <project-id>",
		Short: "Delete a saved project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.FromString(args[0])
			if err != nil {
				return errs.Validation("bad project id %q", args[0])
			}
			if err := getApp().gw.DeleteProject(cmd.Context(), id); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

// skipsBackend reports commands that run without configuration or storage.
func skipsBackend(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "help", "completion":
			return true
		}
	}
	return false
}

// passwordFrom returns flag, or the first line of stdin when flag is empty.
func passwordFrom(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func writeDataURL(path, s string) error {
	du, err := dataurl.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, du.Data, 0o644)
}

// describe adds a user-facing hint to well-known failures.
func describe(err error) error {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		return fmt.Errorf("%w (sign in with `outfit-studio login`)", err)
	case errors.Is(err, errs.ErrMissingCredential):
		return fmt.Errorf("%w (set OUTFIT_API_KEY or GEMINI_API_KEY)", err)
	case errors.Is(err, errs.ErrCapacity):
		return fmt.Errorf("%w (delete old projects with `outfit-studio rm`)", err)
	default:
		return err
	}
}
