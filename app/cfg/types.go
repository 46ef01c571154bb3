package cfg

type Cfg struct {
	// Database configuration
	DBDriver string
	DBDSN    string

	// Application configuration
	SourcesDir   string
	Port         string
	WorkerCount  int
	Schedule     string
	APIAccessKey string
	RedisAddr    string

	// Ingestion
	UserAgent       string
	FetchTimeout    int
	BatchSize       int
	ExcerptLength   int
	IncrementalDays int
	BackfillDays    int
	PagedAPIURL     string
	PagedAPIKey     string

	// Application metadata
	Timezone  string
	LogFormat string
	Debug     bool
	Version   string
}
