package apiserver

import (
	"github.com/spf13/cobra"

	"github.com/lexislearn/admin-gateway/internal/business"
	"github.com/lexislearn/admin-gateway/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"api-server",
		"Admin Gateway API server",
		"Admin Gateway API server hosts the auth and admin routes the dashboard calls and forwards them to the backend",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}
