package migrate

import (
	"github.com/spf13/cobra"

	"github.com/lexislearn/admin-gateway/internal/business"
	"github.com/lexislearn/admin-gateway/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"Admin Gateway migrations",
		"Applies the activity database migrations.",
		buildInfo,
		cmdutils.RunAsJob,
		business.MigrateMain,
	)
}
