package config

// File represents the structure of the enginecache.yaml configuration file.
// Booleans that default to true are pointers so an absent key and an explicit
// false can be told apart.
type File struct {
	CacheEnabled  *bool  `yaml:"cache_enabled"`
	ReuseEnabled  *bool  `yaml:"reuse_enabled"`
	CacheRoot     string `yaml:"cache_root"`
	CapacityBytes *int64 `yaml:"capacity_bytes"`
	Compress      bool   `yaml:"compress"`
	LogJSON       bool   `yaml:"log_json"`
}
