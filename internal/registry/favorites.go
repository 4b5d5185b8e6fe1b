package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/robotlan-core/internal/robot"
)

// Favorites returns a robot's saved jobs.
func (c *Coordinator) Favorites(ctx context.Context, robotID string) ([]robot.Favorite, error) {
	if _, err := c.Session(robotID); err != nil {
		return nil, err
	}
	return c.store.Favorites(ctx, robotID)
}

// SaveFavorite saves the robot's most recent start command as name.
func (c *Coordinator) SaveFavorite(ctx context.Context, robotID, name string) (robot.Favorite, error) {
	s, err := c.Session(robotID)
	if err != nil {
		return robot.Favorite{}, err
	}
	last := s.LastJobStartCommand()
	if last == nil {
		return robot.Favorite{}, ErrNoJobToSave
	}

	existing, err := c.store.Favorites(ctx, robotID)
	if err != nil {
		return robot.Favorite{}, err
	}
	f, err := robot.NewFavorite(name, last, existing)
	if err != nil {
		return robot.Favorite{}, err
	}
	if err := c.store.SaveFavorites(ctx, robotID, append(existing, f)); err != nil {
		return robot.Favorite{}, err
	}
	c.logger.Info("favorite saved", "robot_id", robotID, "favorite", f.Name)
	return f, nil
}

// DeleteFavorite removes the favorite called name.
func (c *Coordinator) DeleteFavorite(ctx context.Context, robotID, name string) error {
	favorites, err := c.Favorites(ctx, robotID)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(favorites, func(f robot.Favorite) bool {
		return strings.EqualFold(strings.TrimSpace(f.Name), strings.TrimSpace(name))
	})
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrFavoriteNotFound, name)
	}
	return c.store.SaveFavorites(ctx, robotID, slices.Delete(favorites, i, i+1))
}

// StartFavorite starts the favorite called name.
func (c *Coordinator) StartFavorite(ctx context.Context, robotID, name string) error {
	s, err := c.Session(robotID)
	if err != nil {
		return err
	}
	favorites, err := c.store.Favorites(ctx, robotID)
	if err != nil {
		return err
	}
	f, ok := robot.FindFavorite(favorites, name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrFavoriteNotFound, name)
	}
	return s.StartFavorite(f)
}
