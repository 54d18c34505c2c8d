// Package catalog owns courses, playlists and the cart/enrollment links between
// students and playlists.
package catalog

import (
	"context"
	"strings"

	"elearn_backend/helpers"

	"xorm.io/xorm"
)

type Options struct {
	// MediaDir is where locally stored videos live, used for duration probing.
	MediaDir string
	// HostImage prefixes stored image paths in student-facing listings.
	HostImage string
}

type prober func(ctx context.Context, path string) (float64, error)

func defaultProber() prober {
	if !helpers.IsFFprobeInstalled() {
		return nil
	}
	return probeDuration
}

func imageURL(host, path string) string {
	if path == "" {
		return ""
	}
	if strings.Contains(path, "://") {
		return path
	}
	return host + path
}

// inTx runs fn inside a transaction bound to ctx.
func inTx(ctx context.Context, engine *xorm.Engine, fn func(sess *xorm.Session) error) error {
	sess := engine.NewSession()
	defer sess.Close()
	sess = sess.Context(ctx)

	if err := sess.Begin(); err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		sess.Rollback()
		return err
	}
	return sess.Commit()
}
