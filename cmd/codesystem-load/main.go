package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"

	"conceptlab.org/internal/auth"
	"conceptlab.org/internal/fhir"
	"conceptlab.org/internal/obs"
	"conceptlab.org/internal/store/pg"
	"conceptlab.org/internal/terminology"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, "")
	defer obs.Sync()
	log := obs.Logger()

	var (
		file   = flag.String("file", "", "path to a FHIR CodeSystem JSON document")
		org    = flag.String("org", "", "owning organization mnemonic")
		user   = flag.String("user", "", "owning username")
		header = flag.String("token", "", "authorization header value (Token <secret>); defaults to CONCEPTLAB_AUTH_TOKEN")
	)
	flag.Parse()
	if *file == "" {
		log.Fatal("missing -file")
	}
	authHeader := *header
	if authHeader == "" {
		authHeader = os.Getenv("CONCEPTLAB_AUTH_TOKEN")
	}

	dsn := os.Getenv("CONCEPTLAB_PG_DSN")
	if dsn == "" {
		log.Fatal("CONCEPTLAB_PG_DSN is not set")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalw("open store", "error", err)
	}
	defer store.Close()

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalw("read document", "error", err)
	}
	cs, err := fhir.Parse(data)
	if err != nil {
		log.Fatalw("parse document", "error", err)
	}

	src := cs.ToSource()
	if src.Version == "" {
		// OCL assigns a server-side version id when the document carries none.
		src.Version = uuid.NewString()
	}
	concepts := cs.BuildConcepts()

	validator := auth.NewValidator(store.Organizations(), store.Users(), store.Tokens(), store.Memberships())
	writer := terminology.NewWriter(validator, terminology.NewConflictChecker(store.Sources()), store)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := writer.CreateCodeSystem(ctx, &terminology.WriteRequest{
		AuthHeader: authHeader,
		OrgCode:    *org,
		Username:   *user,
		Source:     src,
		Concepts:   concepts,
	})
	if err != nil {
		log.Fatalw("write failed", "error", err)
	}
	log.Infow("write complete", "source_id", int64(res.SourceID), "concepts", len(res.ConceptIDs))
}
