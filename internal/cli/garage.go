package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/asyncrace/internal/domain/garage"
	"github.com/okian/asyncrace/internal/domain/listing"
	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/pkg/logger"
)

const defaultColor = "#ffffff"

func newGarageCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "garage",
		Short: "List and edit the vehicles in the garage",
	}
	cmd.AddCommand(
		newGarageListCmd(e),
		newGarageCreateCmd(e),
		newGarageUpdateCmd(e),
		newGarageDeleteCmd(e),
		newGarageGenerateCmd(e),
	)
	return cmd
}

func garageCursor(e *env) *listing.Cursor[model.Vehicle] {
	return listing.NewCursor[model.Vehicle](
		listing.FetcherFunc[model.Vehicle](e.client.ListVehicles),
		e.cfg.GaragePageSize,
		listing.WithCollection("garage"),
	)
}

// openPage loads page on a fresh cursor. Pages past the end clamp to the
// last page.
func openPage[T any](ctx context.Context, c *listing.Cursor[T], page int) error {
	if page < 1 {
		return fmt.Errorf("%w: page must be >= 1", model.ErrInvalidQuery)
	}
	_, err := c.GoToPage(ctx, page)
	return err
}

func newGarageListCmd(e *env) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show one garage page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := garageCursor(e)
			if err := openPage(cmd.Context(), c, page); err != nil {
				return err
			}
			renderVehicles(e.out, c.State())
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	return cmd
}

func newGarageCreateCmd(e *env) *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Add a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := e.client.CreateVehicle(cmd.Context(), model.VehicleInput{Name: args[0], Color: color})
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "created vehicle %d %q\n", v.ID, v.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&color, "color", "c", defaultColor, "vehicle color")
	return cmd
}

func newGarageUpdateCmd(e *env) *cobra.Command {
	var name, color string
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Rename or recolor a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cur, err := e.client.GetVehicle(cmd.Context(), id)
			if err != nil {
				return err
			}
			in := model.VehicleInput{Name: cur.Name, Color: cur.Color}
			if cmd.Flags().Changed("name") {
				in.Name = name
			}
			if cmd.Flags().Changed("color") {
				in.Color = color
			}
			v, err := e.client.UpdateVehicle(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "updated vehicle %d %q %s\n", v.ID, v.Name, v.Color)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "new name")
	cmd.Flags().StringVarP(&color, "color", "c", "", "new color")
	return cmd
}

func newGarageDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a vehicle and its winner record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := e.client.DeleteVehicle(cmd.Context(), id); err != nil {
				return err
			}
			if err := e.client.DeleteWinner(cmd.Context(), id); err != nil && !errors.Is(err, model.ErrNotFound) {
				return fmt.Errorf("vehicle %d deleted but its winner record remains: %w", id, err)
			}
			fmt.Fprintf(e.out, "deleted vehicle %d\n", id)
			return nil
		},
	}
}

func newGarageGenerateCmd(e *env) *cobra.Command {
	var (
		count int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Add randomly named vehicles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("%w: count must be positive", model.ErrInvalidVehicle)
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			created := 0
			for _, in := range garage.NewGenerator(seed).Vehicles(count) {
				if _, err := e.client.CreateVehicle(cmd.Context(), in); err != nil {
					e.log.Error(cmd.Context(), "generate stopped", logger.Int("created", created), logger.Error(err))
					return err
				}
				created++
			}
			fmt.Fprintf(e.out, "generated %d vehicles\n", created)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", e.cfg.GenerateCount, "number of vehicles")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed; 0 picks one")
	return cmd
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid id %q", model.ErrInvalidQuery, raw)
	}
	return id, nil
}
