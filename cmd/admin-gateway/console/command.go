package console

import (
	"fmt"
	"os"

	"github.com/openkcm/common-sdk/pkg/logger"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lexislearn/admin-gateway/internal/cmdutils"
	"github.com/lexislearn/admin-gateway/internal/console"
)

const use = "console"

// IsConsole reports whether cmd is the console command or one of its children.
func IsConsole(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == use {
			return true
		}
	}
	return false
}

func Cmd(buildInfo string) *cobra.Command {
	var c *console.Console

	cmd := &cobra.Command{
		Use:   use,
		Short: "Admin console",
		Long:  "Manage assessments from the terminal. Sign in once; the session is kept in the console session file.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cmdutils.LoadConfig(buildInfo)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if err := logger.InitAsDefault(cfg.Logger, cfg.Application); err != nil {
				return oops.In("console").Wrapf(err, "Failed to initialise the logger")
			}

			c, err = console.New(cfg.Console, cmd.OutOrStdout())
			return err
		},
	}

	cmd.AddCommand(
		signInCmd(&c),
		signOutCmd(&c),
		testsCmd(&c),
		questionsCmd(&c),
		statsCmd(&c),
	)

	return cmd
}

func signInCmd(c **console.Console) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "sign-in",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_GATEWAY_PASSWORD")
			}
			return (*c).SignIn(cmd.Context(), email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password, defaults to $ADMIN_GATEWAY_PASSWORD")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func signOutCmd(c **console.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "sign-out",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return (*c).SignOut(cmd.Context())
		},
	}
}

func testsCmd(c **console.Console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tests",
		Short: "Assessment tests",
	}

	var title, description string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an assessment test",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return (*c).CreateTest(cmd.Context(), title, description)
		},
	}
	create.Flags().StringVar(&title, "title", "", "test title")
	create.Flags().StringVar(&description, "description", "", "test description")
	_ = create.MarkFlagRequired("title")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List assessment tests",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return (*c).ListTests(cmd.Context())
			},
		},
		create,
	)

	return cmd
}

func questionsCmd(c **console.Console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Questions of an assessment test",
	}

	var (
		content string
		options []string
		correct int
	)
	add := &cobra.Command{
		Use:   "add <testId>",
		Short: "Add a question with four options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return (*c).AddQuestion(cmd.Context(), args[0], content, options, correct)
		},
	}
	add.Flags().StringVar(&content, "content", "", "question text")
	add.Flags().StringArrayVar(&options, "option", nil, "answer option, repeat four times")
	add.Flags().IntVar(&correct, "correct", 1, "position of the correct option, starting at 1")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <testId>",
			Short: "List the questions of a test",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return (*c).ListQuestions(cmd.Context(), args[0])
			},
		},
		add,
	)

	return cmd
}

func statsCmd(c **console.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show gateway activity statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return (*c).Stats(cmd.Context())
		},
	}
}
