package cfg

type Cfg struct {
	// Feed configuration
	FeedURL string

	// State and output paths
	DataDir     string
	CatalogFile string

	// URL guard
	GuardPolicyFile string

	// Pipeline tuning
	EpisodeConcurrency int
	RunTimeoutMinutes  int
	LookbackHours      int
	DryRun             bool

	// Notifications
	NtfyTopic string

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
