package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

type likeLinkOutput struct {
	ID       string `json:"id"`
	Referrer string `json:"referrer"`
	Sent     bool   `json:"sent"`
}

func newLikeLinkCmd(c *cli) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "likelink <liker-id>",
		Short: "Like a link shared on the referrer page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := json.RawMessage(data)
			if data != "" && !json.Valid(payload) {
				return errors.New("--data must be a JSON document")
			}
			e, err := c.env(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			sess, err := e.client.NewSession()
			if err != nil {
				return err
			}
			rc := c.pageContext()
			if err := sess.PostLikeLink(cmd.Context(), args[0], payload, rc.Meta(rc.CookieSupport)); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), likeLinkOutput{ID: args[0], Referrer: rc.Referrer, Sent: true})
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON body sent with the like")
	return cmd
}
