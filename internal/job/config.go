package job

// BuildConfig is the per-commit build configuration fetched from the
// hosting adapter (a `.kamino.yml` file living in the target repo).
type BuildConfig struct {
	Commit CommitConfig `yaml:"commit"`
	Push   PushConfig   `yaml:"push"`
	PR     PRConfig     `yaml:"pr"`
}

// CommitConfig governs commit-message based skip policy.
type CommitConfig struct {
	SkipKeywords []string `yaml:"skip_keywords"`
}

// PushConfig governs which refs are accepted for push-triggered builds.
type PushConfig struct {
	Branches []string `yaml:"branches"`
	Tags     []string `yaml:"tags"`
}

// PRConfig governs pull-request specific behavior.
type PRConfig struct {
	EnableComments bool   `yaml:"enable_comments"`
	FastTrackLabel string `yaml:"fast_track_label"`
}

// DefaultConfig returns the configuration applied when a repo carries no
// `.kamino.yml` file.
func DefaultConfig() BuildConfig {
	return BuildConfig{
		Commit: CommitConfig{SkipKeywords: []string{"ci: skip", "ci skip", "[skip ci]"}},
		Push:   PushConfig{Branches: []string{"master", "main"}, Tags: []string{"*"}},
		PR:     PRConfig{EnableComments: true, FastTrackLabel: "fast-track"},
	}
}
