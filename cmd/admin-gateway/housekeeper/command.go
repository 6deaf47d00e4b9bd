package housekeeper

import (
	"github.com/spf13/cobra"

	"github.com/lexislearn/admin-gateway/internal/business"
	"github.com/lexislearn/admin-gateway/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"housekeeper",
		"Admin Gateway Housekeeping job",
		"Admin Gateway Housekeeping job prunes activity events older than the configured retention.",
		buildInfo,
		cmdutils.RunAsService,
		business.HousekeeperMain,
	)
}
