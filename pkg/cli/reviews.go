package cli

import (
	"context"

	"github.com/ekaya-inc/gamedash/pkg/models"
)

// ReviewsCmd groups the review subcommands.
type ReviewsCmd struct {
	List   ReviewsListCmd   `cmd:"" default:"1" help:"Show the reviews table"`
	Add    ReviewsAddCmd    `cmd:"" help:"Insert a review"`
	Delete ReviewsDeleteCmd `cmd:"" help:"Delete reviews by id"`
	Totals ReviewsTotalsCmd `cmd:"" help:"Show recommendations per game"`
}

// ReviewsListCmd prints the reviews table.
type ReviewsListCmd struct{}

// Run executes the reviews list command
func (cmd *ReviewsListCmd) Run(ctx *Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	table, err := a.dashboard.LoadReviewsTable(context.Background())
	if err != nil {
		return err
	}
	return printTable(ctx.Stdout, table)
}

// ReviewsAddCmd inserts one review.
type ReviewsAddCmd struct {
	Game        string `required:"" help:"Game name, exactly as stored"`
	User        string `required:"" help:"User name, exactly as stored"`
	Review      string `required:"" help:"Review text"`
	Recommended bool   `negatable:"" default:"true" help:"Whether the user recommends the game"`
}

// Run executes the reviews add command
func (cmd *ReviewsAddCmd) Run(ctx *Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	flag := models.RecommendedFlagNo
	if cmd.Recommended {
		flag = models.RecommendedFlagYes
	}

	result, err := a.dashboard.InsertReview(context.Background(), models.NewReview{
		Review:      cmd.Review,
		Recommended: flag,
		Game:        cmd.Game,
		User:        cmd.User,
	})
	if err != nil {
		return err
	}
	okColor.Fprintf(ctx.Stdout, "Inserted %d review(s) of %s by %s (recommended: %s)\n",
		result.RowsAffected, cmd.Game, cmd.User, models.RecommendedLabel(flag))
	return nil
}

// ReviewsDeleteCmd deletes reviews by id.
type ReviewsDeleteCmd struct {
	IDs []int64 `arg:"" name:"id" help:"Review ids to delete"`
}

// Run executes the reviews delete command
func (cmd *ReviewsDeleteCmd) Run(ctx *Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.dashboard.DeleteReviews(context.Background(), cmd.IDs)
	if err != nil {
		return err
	}
	if result.RowsAffected == 0 {
		noteColor.Fprintln(ctx.Stdout, "No matching reviews")
		return nil
	}
	okColor.Fprintf(ctx.Stdout, "Deleted %d review(s)\n", result.RowsAffected)
	return nil
}

// ReviewsTotalsCmd prints recommendation totals per game.
type ReviewsTotalsCmd struct{}

// Run executes the reviews totals command
func (cmd *ReviewsTotalsCmd) Run(ctx *Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	table, err := a.dashboard.LoadRecommendationTotals(context.Background())
	if err != nil {
		return err
	}
	return printTable(ctx.Stdout, table)
}
