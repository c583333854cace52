package main

import (
	"github.com/spf13/cobra"

	"github.com/likecoin/likecoin-button/internal/widget"
)

var widgetPopup = widget.LaunchOptions{NewWindow: true}

type urlsOutput struct {
	SignUp     string `json:"signUp"`
	SuperLike  string `json:"superLike"`
	LikeStats  string `json:"likeStats"`
	CivicLiker string `json:"civicLiker"`
}

func newURLsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "urls <liker-id>",
		Short: "Print the pages the button opens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.env(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			wd, err := c.openWidget(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			defer shutdown(wd, e.cfg.API.Timeout)

			l := wd.Launcher()
			return printJSON(cmd.OutOrStdout(), urlsOutput{
				SignUp:     l.SignUpURL(),
				SuperLike:  l.SuperLikeURL(),
				LikeStats:  l.LikeStats(widgetPopup).URL,
				CivicLiker: l.CivicLiker().URL,
			})
		},
	}
}
