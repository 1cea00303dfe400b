// Package addons holds the plugins compiled into the server.
package addons

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/hongminglow/kaisurf-be/internal/events"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/plugin"
)

// KonesWalletEntryPoint is the manifest entry_point of the wallet addon.
const KonesWalletEntryPoint = "builtin.kones_wallet"

// KonesWalletManifest loads the wallet addon without a manifest on disk.
var KonesWalletManifest = plugin.Manifest{
	Name:        "kones_wallet",
	EntryPoint:  KonesWalletEntryPoint,
	Version:     "1.0.0",
	Description: "Kones balance and history screens.",
}

// Register adds every built-in factory to reg.
func Register(reg *plugin.Registry) error {
	return reg.Register(KonesWalletEntryPoint, NewKonesWallet)
}

// KonesWallet lists the wallet screens and keeps a running tally of credits
// seen since startup.
type KonesWallet struct {
	enabled func() bool
	log     logrus.FieldLogger

	credits atomic.Int64
	kones   atomic.Int64
}

func NewKonesWallet(caps plugin.Capabilities) (plugin.Instance, error) {
	if caps.Log == nil {
		caps.Log = logrus.StandardLogger()
	}
	return &KonesWallet{enabled: caps.KonesEnabled, log: caps.Log}, nil
}

func (k *KonesWallet) AttachUI(w plugin.Window) error {
	items := []models.MenuItem{
		{ID: "kones_balance", Label: "Kones Balance", Endpoint: "/kones/balance", AuthRequired: true},
		{ID: "kones_ledger", Label: "Kones History", Endpoint: "/kones/ledger", AuthRequired: true},
	}
	for _, item := range items {
		if err := w.AddMenuItemWhen(item, k.enabled); err != nil {
			return err
		}
	}
	return nil
}

func (k *KonesWallet) RespondToHostEvent(_ context.Context, event events.Event) error {
	if event.Type != events.TypeKonesCredited {
		return nil
	}
	amount := gjson.GetBytes(event.Payload, "amount").Int()
	k.credits.Add(1)
	k.kones.Add(amount)
	k.log.WithFields(logrus.Fields{
		"user_id": event.AuthUID,
		"amount":  amount,
	}).Debug("kones credited")
	return nil
}

// Totals reports how many credits were seen and how many Kones they carried.
func (k *KonesWallet) Totals() (credits, kones int64) {
	return k.credits.Load(), k.kones.Load()
}
