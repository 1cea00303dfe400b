package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hongminglow/kaisurf-be/internal/http/respond"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/models/dto"
	"github.com/hongminglow/kaisurf-be/internal/plugin"
)

var baseMenu = []models.MenuItem{
	{ID: "profile", Label: "My Profile", Endpoint: "/user/profile", AuthRequired: true},
	{ID: "chronolog", Label: "My Activity", Endpoint: "/user/chronolog", AuthRequired: true},
}

// MenuSource supplies what loaded plugins contribute to the client.
type MenuSource interface {
	Menu() []models.MenuItem
	Plugins() []plugin.Manifest
}

// AppConfigHandler tells clients which menus and features to render.
type AppConfigHandler struct {
	appName      string
	version      string
	konesEnabled func() bool
	plugins      MenuSource
}

func NewAppConfigHandler(appName, version string, konesEnabled func() bool, plugins MenuSource) *AppConfigHandler {
	return &AppConfigHandler{appName: appName, version: version, konesEnabled: konesEnabled, plugins: plugins}
}

func (h *AppConfigHandler) Register(r *mux.Router) {
	r.HandleFunc("/app/config", h.handle).Methods(http.MethodGet)
}

func (h *AppConfigHandler) handle(w http.ResponseWriter, _ *http.Request) {
	menu := append([]models.MenuItem(nil), baseMenu...)
	infos := []dto.PluginInfo{}
	if h.plugins != nil {
		menu = append(menu, h.plugins.Menu()...)
		for _, m := range h.plugins.Plugins() {
			infos = append(infos, dto.PluginInfo{Name: m.Name, Version: m.Version})
		}
	}
	respond.JSON(w, http.StatusOK, dto.AppConfig{
		AppName:      h.appName,
		Version:      h.version,
		Menu:         menu,
		FeatureFlags: dto.FeatureFlags{KonesEnabled: h.konesEnabled()},
		Plugins:      infos,
	})
}
