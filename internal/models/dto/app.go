package dto

import "github.com/hongminglow/kaisurf-be/internal/models"

type FeatureFlags struct {
	KonesEnabled bool `json:"kones_enabled"`
}

type PluginInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type AppConfig struct {
	AppName      string            `json:"app_name"`
	Version      string            `json:"version"`
	Menu         []models.MenuItem `json:"menu"`
	FeatureFlags FeatureFlags      `json:"feature_flags"`
	Plugins      []PluginInfo      `json:"plugins"`
}

type Post struct {
	Title string `json:"title"`
}

type PostsResponse struct {
	User    string `json:"user"`
	Message string `json:"message"`
	Posts   []Post `json:"posts"`
}
