package assets

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// AboutFile is written to dist by About.
const AboutFile = "about.txt"

// RepoInfo describes the checkout the site is built from.
type RepoInfo struct {
	RemoteURL string
	Head      string // abbreviated HEAD commit
}

// ReadRepoInfo opens the git repository containing dir.
func ReadRepoInfo(dir string) (RepoInfo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return RepoInfo{}, err
	}
	var info RepoInfo
	ref, err := repo.Head()
	if err != nil {
		return RepoInfo{}, err
	}
	info.Head = ref.Hash().String()[:7]

	remote, err := repo.Remote("origin")
	switch {
	case errors.Is(err, git.ErrRemoteNotFound):
	case err != nil:
		return RepoInfo{}, err
	default:
		if urls := remote.Config().URLs; len(urls) > 0 {
			info.RemoteURL = urls[0]
		}
	}
	return info, nil
}

// About writes dist/about.txt as "<repository url>#<short HEAD>". The
// configured repository URL overrides the origin remote. Without a
// repository or URL the step is skipped.
func (p *Pipeline) About(ctx context.Context) error {
	if !p.build.About {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := ReadRepoInfo(p.RepoDir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		slog.Warn("Not a git repository, skipping about.txt", logfields.Path(p.RepoDir))
		return nil
	}
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryAsset, "read repository info").
			WithContext("path", p.RepoDir).
			Build()
	}
	repoURL := info.RemoteURL
	if p.build.RepoURL != "" {
		repoURL = p.build.RepoURL
	}
	if repoURL == "" {
		slog.Warn("No repository URL, skipping about.txt", logfields.Path(p.RepoDir))
		return nil
	}
	return writeFile(filepath.Join(p.paths.Dist, AboutFile), []byte(repoURL+"#"+info.Head+"\n"))
}
