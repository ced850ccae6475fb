package app

import (
	"log/slog"
	"os"

	"securecast/internal/crypto"
	"securecast/internal/netutil"
	"securecast/internal/repair"
	"securecast/internal/services/receiver"
	"securecast/internal/services/sender"
	"securecast/internal/store"
	"securecast/internal/transmit"
	"securecast/internal/wire"
)

// App bundles the stores and services the commands use.
type App struct {
	Config   Config
	Spool    *store.SpoolFileStore
	Sender   *sender.Service
	Receiver *receiver.Service
	Log      *slog.Logger
}

// New constructs the dependency graph from a validated cfg.
func New(cfg Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Home != "" {
		if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
			return nil, err
		}
	}

	// Parsed already by Validate.
	integrity, _ := crypto.ParseMode(cfg.Integrity)
	mode, _ := repair.ParseMode(cfg.RepairMode)
	framing, _ := wire.ParseFraming(cfg.RepairFraming)

	spool := store.NewSpoolFileStore(cfg.Home)

	snd := sender.New(sender.Options{
		GroupName: cfg.GroupName,
		Group:     cfg.Group,
		Multicast: netutil.SenderOptions{
			TTL:       cfg.TTL,
			Loopback:  !cfg.DisableLoopback,
			Interface: cfg.Interface,
		},
		Transmit: transmit.Config{
			ChunkSize:      cfg.ChunkSize,
			Rate:           cfg.Rate,
			Burst:          cfg.Burst,
			AnnounceTotal:  cfg.AnnounceTotal,
			RepeatMetadata: cfg.RepeatMetadata,
		},
		Integrity:        integrity,
		StartDelay:       cfg.StartDelay.D(),
		HandshakeTimeout: cfg.HandshakeTimeout.D(),
		RepairAddr:       sender.RepairAddr(cfg.RepairPort),
		RepairMode:       mode,
		RepairFraming:    framing,
		RepairWindow:     cfg.RepairWindow.D(),
		Spool:            cfg.Spool,
	}, spool, log.With("role", "sender"))

	rcv := receiver.New(receiver.Options{
		HandshakeAddr:     cfg.HandshakeAddr(),
		HandshakeTimeout:  cfg.HandshakeTimeout.D(),
		Group:             cfg.Group,
		Interface:         cfg.Interface,
		Integrity:         integrity,
		BufferSize:        cfg.ReceiveBuffer,
		IdleTimeout:       cfg.IdleTimeout.D(),
		RepairPort:        cfg.RepairPort,
		RepairFraming:     framing,
		RepairRetries:     cfg.RepairRetries,
		RepairRetryDelay:  cfg.RepairRetryDelay.D(),
		RepairDialTimeout: cfg.RepairDialTimeout.D(),
		RepairRounds:      cfg.RepairRounds,
		ChunkSize:         cfg.ChunkSize,
		OutputDir:         cfg.OutputDir,
	}, log.With("role", "receiver"))

	return &App{Config: cfg, Spool: spool, Sender: snd, Receiver: rcv, Log: log}, nil
}
