package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/likecoin/likecoin-button/internal/widget"
)

type likeOutput struct {
	ID       string       `json:"id"`
	Outcomes []string     `json:"outcomes"`
	State    widget.State `json:"state"`
}

func newLikeCmd(c *cli) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "like <liker-id>",
		Short: "Click the like button and send the batched likes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 || count > widget.MaxLike {
				return fmt.Errorf("--count must be between 1 and %d", widget.MaxLike)
			}
			e, err := c.env(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			wd, err := c.openWidget(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			out := likeOutput{ID: wd.ID()}
			for i := 0; i < count; i++ {
				outcome, err := wd.Like()
				if err != nil {
					shutdown(wd, e.cfg.API.Timeout)
					return err
				}
				out.Outcomes = append(out.Outcomes, outcome.String())
			}
			e.logger.Debug("likes queued", zap.Int("count", count))
			shutdown(wd, e.cfg.API.Timeout)
			out.State = wd.Snapshot()
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of clicks")
	return cmd
}

var errSuperLikeUnavailable = errors.New("super like is cooling down")

func newSuperLikeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "superlike <liker-id>",
		Short: "Fill the likes up to the maximum and send a super like",
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

			out := likeOutput{ID: wd.ID()}
			// one click per missing like plus the super-like itself
			for i := 0; i <= widget.MaxLike; i++ {
				outcome, err := wd.Like()
				if err != nil {
					return err
				}
				out.Outcomes = append(out.Outcomes, outcome.String())
				if outcome == widget.OutcomeCoolingDown {
					return errSuperLikeUnavailable
				}
				if outcome == widget.OutcomeSuperLiked {
					break
				}
			}
			out.State = wd.Snapshot()
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
