package services

import (
	"context"
	"fmt"

	"github.com/releasedesk/backend/internal/models"
)

// cannedTask is a fixed campaign task. Types limits it to some release types; empty
// means every type.
type cannedTask struct {
	GeneratedTask
	Types []models.ReleaseType
}

func (c cannedTask) fits(t models.ReleaseType) bool {
	if len(c.Types) == 0 {
		return true
	}
	for _, v := range c.Types {
		if v == t {
			return true
		}
	}
	return false
}

func canned(phase models.Phase, category models.TaskCategory, platform models.TaskPlatform, title, description string, types ...models.ReleaseType) cannedTask {
	return cannedTask{
		GeneratedTask: GeneratedTask{
			Title:       title,
			Description: description,
			Phase:       phase,
			Category:    category,
			Platform:    platform,
			Rationale:   "Standard step for this stage of a release campaign.",
		},
		Types: types,
	}
}

// fallbackCatalog holds the canned campaign tasks per phase, in the order they are handed out.
var fallbackCatalog = map[models.Phase][]cannedTask{
	models.PhasePreProduction: {
		canned(models.PhasePreProduction, models.CategoryPlanning, models.PlatformGeneral,
			"Define your campaign goal", "Write down one measurable goal for this release and the date you want to hit it by."),
		canned(models.PhasePreProduction, models.CategoryPlanning, models.PlatformGeneral,
			"Collect three reference campaigns", "Find three artists in your genre and note what their last release campaign did well."),
		canned(models.PhasePreProduction, models.CategoryContent, models.PlatformInstagram,
			"Set up a visual moodboard", "Gather colours, fonts and imagery that match the sound of the release."),
		canned(models.PhasePreProduction, models.CategoryPlanning, models.PlatformGeneral,
			"Map the tracklist story", "Write one line per track describing its role in the record.", models.ReleaseTypeEP, models.ReleaseTypeAlbum),
		canned(models.PhasePreProduction, models.CategoryPlanning, models.PlatformGeneral,
			"Write the song's one-sentence pitch", "Describe the single in one sentence you can reuse in every pitch.", models.ReleaseTypeSingle),
		canned(models.PhasePreProduction, models.CategorySocial, models.PlatformGeneral,
			"Audit your social profiles", "Update bios, profile pictures and links on every platform you use."),
	},
	models.PhaseProduction: {
		canned(models.PhaseProduction, models.CategoryContent, models.PlatformTikTok,
			"Film three studio snippets", "Record short behind-the-scenes clips you can post before release."),
		canned(models.PhaseProduction, models.CategoryContent, models.PlatformInstagram,
			"Shoot press photos", "Plan a shoot that produces portrait and landscape photos in the release aesthetic."),
		canned(models.PhaseProduction, models.CategoryContent, models.PlatformYouTube,
			"Prepare a visualizer", "Create a looping visualizer from the cover artwork for the lead track."),
		canned(models.PhaseProduction, models.CategoryContent, models.PlatformGeneral,
			"Export short-form audio hooks", "Cut 15 and 30 second hooks of the strongest moments for social posts."),
		canned(models.PhaseProduction, models.CategoryContent, models.PlatformYouTube,
			"Plan a track-by-track video series", "Outline a short video for each track explaining how it came together.", models.ReleaseTypeEP, models.ReleaseTypeAlbum),
		canned(models.PhaseProduction, models.CategoryPress, models.PlatformPress,
			"Write the artist bio", "Write a short and a long bio that mention this release."),
	},
	models.PhasePromotion: {
		canned(models.PhasePromotion, models.CategorySocial, models.PlatformInstagram,
			"Announce the release date", "Post the cover artwork with the release date and a pre-save link."),
		canned(models.PhasePromotion, models.CategoryPlaylist, models.PlatformSpotify,
			"Pitch to Spotify editorial", "Submit the release in Spotify for Artists at least seven days before release day."),
		canned(models.PhasePromotion, models.CategoryPress, models.PlatformPress,
			"Send the press kit to ten blogs", "Email a short pitch with a private link to ten blogs that cover your genre."),
		canned(models.PhasePromotion, models.CategorySocial, models.PlatformTikTok,
			"Start a sound trend", "Post the hook as a TikTok sound and make three videos using it."),
		canned(models.PhasePromotion, models.CategoryAdvertising, models.PlatformInstagram,
			"Run a small pre-release ad test", "Spend a small budget testing two ad creatives and keep the better one."),
		canned(models.PhasePromotion, models.CategorySocial, models.PlatformEmail,
			"Email your mailing list", "Tell your fans what the release means to you and link the pre-save."),
		canned(models.PhasePromotion, models.CategoryPlaylist, models.PlatformGeneral,
			"Pitch independent playlist curators", "Send personal pitches to five curators whose playlists fit the track."),
	},
	models.PhaseDistribution: {
		canned(models.PhaseDistribution, models.CategoryDistribution, models.PlatformGeneral,
			"Check release day links", "Make sure every store link works and update your link-in-bio page."),
		canned(models.PhaseDistribution, models.CategorySocial, models.PlatformInstagram,
			"Post on release day", "Share the release with a personal caption and reshare fan posts."),
		canned(models.PhaseDistribution, models.CategoryPlaylist, models.PlatformSpotify,
			"Thank playlist adds", "Thank every curator who added the track and share their playlist."),
		canned(models.PhaseDistribution, models.CategoryDistribution, models.PlatformAppleMusic,
			"Claim your Apple Music profile", "Claim the artist profile and add the release to your artist page."),
		canned(models.PhaseDistribution, models.CategoryPlanning, models.PlatformGeneral,
			"Review first week numbers", "Compare streams, saves and followers with your campaign goal."),
		canned(models.PhaseDistribution, models.CategoryContent, models.PlatformYouTube,
			"Publish the full album stream", "Upload the full record with chapters for each track.", models.ReleaseTypeAlbum),
	},
}

// FallbackGenerator hands out canned tasks deterministically: same release type, phase
// and already-used titles give the same tasks.
type FallbackGenerator struct{}

func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{}
}

func (g *FallbackGenerator) GenerateInitialStrategy(_ context.Context, gc GenerationContext) ([]GeneratedTask, error) {
	if gc.CurrentPhase == "" {
		gc.CurrentPhase = models.PhasePreProduction
	}
	return g.batch(gc), nil
}

func (g *FallbackGenerator) GenerateNextTasks(_ context.Context, gc GenerationContext) ([]GeneratedTask, error) {
	return g.batch(gc), nil
}

// GenerateTaskVariant returns the first unused canned task of the same phase, or a
// reworded copy of task when the phase has nothing left.
func (g *FallbackGenerator) GenerateTaskVariant(_ context.Context, gc GenerationContext, task models.CampaignTask) (GeneratedTask, error) {
	used := titleSet(gc.ExistingTitles)
	used[normalizeTitle(task.Title)] = true
	for _, c := range fallbackCatalog[task.Phase] {
		if c.fits(releaseType(gc)) && !used[normalizeTitle(c.Title)] {
			return c.GeneratedTask, nil
		}
	}
	return GeneratedTask{
		Title:       "Alternative: " + task.Title,
		Description: task.Description,
		Phase:       task.Phase,
		Category:    task.Category,
		Platform:    task.Platform,
		Rationale:   task.Rationale,
	}.normalize(task.Phase), nil
}

// batch takes unused canned tasks starting at the current phase and moving to later
// phases until the batch is full. When every canned task is used it produces
// numbered check-in tasks so the campaign never runs dry.
func (g *FallbackGenerator) batch(gc GenerationContext) []GeneratedTask {
	size := gc.BatchSize
	if size <= 0 {
		size = 3
	}
	phase := gc.CurrentPhase
	if !phase.Valid() {
		phase = models.PhasePreProduction
	}
	used := titleSet(gc.ExistingTitles)
	rt := releaseType(gc)

	out := make([]GeneratedTask, 0, size)
	for {
		for _, c := range fallbackCatalog[phase] {
			if len(out) == size {
				return out
			}
			if c.fits(rt) && !used[normalizeTitle(c.Title)] {
				out = append(out, c.GeneratedTask)
				used[normalizeTitle(c.Title)] = true
			}
		}
		if len(out) == size {
			return out
		}
		next := phase.Next()
		if next == phase {
			break
		}
		phase = next
	}

	for n := len(gc.ExistingTitles) + 1; len(out) < size; n++ {
		title := fmt.Sprintf("Fan engagement check-in #%d", n)
		if used[normalizeTitle(title)] {
			continue
		}
		used[normalizeTitle(title)] = true
		out = append(out, GeneratedTask{
			Title:       title,
			Description: "Reply to comments, reshare fan posts and note which content performed best this week.",
			Phase:       models.PhaseDistribution,
			Category:    models.CategorySocial,
			Platform:    models.PlatformGeneral,
			Rationale:   "Keeps momentum after the planned campaign steps are done.",
		})
	}
	return out
}

func releaseType(gc GenerationContext) models.ReleaseType {
	if gc.Release == nil {
		return models.ReleaseTypeSingle
	}
	return gc.Release.Type
}
