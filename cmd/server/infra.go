package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"lexflow/internal/document/blob"
	docservice "lexflow/internal/document/service"
	docmemory "lexflow/internal/document/store/memory"
	docpostgres "lexflow/internal/document/store/postgres"
	"lexflow/internal/document/sweeper"
	idservice "lexflow/internal/identity/service"
	idstore "lexflow/internal/identity/store"
	"lexflow/internal/platform/config"
	"lexflow/internal/platform/postgres"
	redisplatform "lexflow/internal/platform/redis"
	audit "lexflow/pkg/platform/audit"
	auditkafka "lexflow/pkg/platform/audit/store/kafka"
	auditmemory "lexflow/pkg/platform/audit/store/memory"
)

const lockPrefix = "lexflow:lock:"

// infrastructure holds the backing services chosen from config. Each one
// falls back to an in-process implementation when unconfigured.
type infrastructure struct {
	kind       string
	stores     docservice.Stores
	tx         docservice.TxRunner
	users      idservice.Store
	blobs      docservice.BlobStore
	auditStore audit.Store
	locker     sweeper.Locker

	db      *sql.DB
	redis   *redisplatform.Client
	closers []func()
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}
	if err := infra.openDatabase(ctx, cfg); err != nil {
		infra.close()
		return nil, err
	}
	if err := infra.openBlobs(ctx, cfg); err != nil {
		infra.close()
		return nil, err
	}
	if err := infra.openAudit(ctx, cfg, log); err != nil {
		infra.close()
		return nil, err
	}
	if err := infra.openLocker(ctx, cfg); err != nil {
		infra.close()
		return nil, err
	}
	return infra, nil
}

func (i *infrastructure) openDatabase(ctx context.Context, cfg config.Server) error {
	if cfg.DatabaseURL == "" {
		mem := docmemory.NewDB()
		i.kind = "memory"
		i.stores = docservice.Stores{
			Documents:     mem.Documents(),
			Signatures:    mem.Signatures(),
			Grants:        mem.Grants(),
			Versions:      mem.Versions(),
			Relationships: mem.Relationships(),
		}
		i.tx = mem
		i.users = idstore.NewInMemory()
		return nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	i.db = db
	i.closers = append(i.closers, func() { _ = db.Close() })
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	i.kind = "postgres"
	i.stores = docservice.Stores{
		Documents:     docpostgres.NewDocumentStore(db),
		Signatures:    docpostgres.NewSignatureStore(db),
		Grants:        docpostgres.NewGrantStore(db),
		Versions:      docpostgres.NewVersionStore(db),
		Relationships: docpostgres.NewRelationshipStore(db),
	}
	i.tx = newDocumentPostgresTx(db, cfg.DBTxTimeout)
	i.users = idstore.NewPostgres(db)
	return nil
}

func (i *infrastructure) openBlobs(ctx context.Context, cfg config.Server) error {
	if cfg.VersionBucket == "" {
		i.blobs = blob.NewInMemory()
		return nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	i.closers = append(i.closers, func() { _ = client.Close() })
	i.blobs = blob.NewGCS(client, cfg.VersionBucket)
	return nil
}

func (i *infrastructure) openAudit(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if len(cfg.KafkaBrokers) == 0 {
		i.auditStore = auditmemory.NewInMemoryStore()
		return nil
	}
	store, err := auditkafka.New(cfg.KafkaBrokers, cfg.AuditTopic)
	if err != nil {
		return err
	}
	i.closers = append(i.closers, store.Close)
	if err := store.EnsureTopic(ctx, 1, 1); err != nil {
		log.WarnContext(ctx, "audit topic not ensured", "topic", cfg.AuditTopic, "error", err)
	}
	i.auditStore = store
	return nil
}

func (i *infrastructure) openLocker(ctx context.Context, cfg config.Server) error {
	client, err := redisplatform.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if client == nil {
		i.locker = sweeper.NewLocalLocker()
		return nil
	}
	i.redis = client
	i.closers = append(i.closers, func() { _ = client.Close() })
	i.locker = redisplatform.NewLocker(client.Client, lockPrefix)
	return nil
}

func (i *infrastructure) ping(ctx context.Context) error {
	if i.db != nil {
		if err := i.db.PingContext(ctx); err != nil {
			return err
		}
	}
	if i.redis != nil {
		return i.redis.Health(ctx)
	}
	return nil
}

// close releases resources in reverse order of acquisition.
func (i *infrastructure) close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
}
