package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/zond/hitres/config"
	"github.com/zond/hitres/storage"
	"github.com/zond/hitres/structs"

	goccy "github.com/goccy/go-json"
)

type target struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Template string              `json:"template,omitempty"`
	Body     structs.Body        `json:"body"`
	State    structs.TargetState `json:"state"`
}

type data struct {
	Templates map[string]*structs.Body `json:"templates"`
	Targets   []target                 `json:"targets"`
}

func main() {
	configDir := flag.String("config", filepath.Join(os.Getenv("HOME"), ".hitres"), "Where to look for hitres.json.")
	dataPath := flag.String("data", "", "Path to load JSON from.")
	doRestore := flag.Bool("restore", false, "XOR 'backup': Whether to load data from the data path to the database dir.")
	doBackup := flag.Bool("backup", false, "XOR 'restore': Whether to load data from the database dir to the data path.")

	flag.Parse()

	if *dataPath == "" || (*doRestore == *doBackup) {
		flag.Usage()
		return
	}

	if err := config.Load(*configDir); err != nil {
		log.Fatal(err)
	}
	settings := config.Current()

	ctx := context.Background()

	store, err := storage.New(ctx, settings.DataDir, storage.Options{
		CacheTTL:        settings.CacheTTL,
		AuditMaxSizeMB:  settings.AuditMaxSizeMB,
		AuditMaxBackups: settings.AuditMaxBackups,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if *doRestore {
		f, err := os.Open(*dataPath)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()

		d := &data{}
		if err := goccy.NewDecoder(f).Decode(d); err != nil {
			log.Fatalf("decoding data: %v", err)
		}

		for name, body := range d.Templates {
			if err := store.SetTemplate(name, body); err != nil {
				log.Fatalf("storing template %q: %v", name, err)
			}
		}
		for _, t := range d.Targets {
			if err := store.CreateTarget(ctx, &storage.Target{
				ID:       t.ID,
				Name:     t.Name,
				Template: t.Template,
				Body:     storage.JSON[structs.Body]{V: t.Body},
				State:    storage.JSON[structs.TargetState]{V: t.State},
			}); err != nil {
				log.Fatalf("storing target %q: %v", t.ID, err)
			}
		}
		log.Printf("Restored %d templates and %d targets", len(d.Templates), len(d.Targets))
	}
	if *doBackup {
		d := &data{
			Templates: map[string]*structs.Body{},
			Targets:   []target{},
		}
		names, err := store.Templates()
		if err != nil {
			log.Fatalf("listing templates: %v", err)
		}
		for _, name := range names {
			if d.Templates[name], err = store.Template(name); err != nil {
				log.Fatalf("loading template %q: %v", name, err)
			}
		}
		targets, err := store.Targets(ctx)
		if err != nil {
			log.Fatalf("listing targets: %v", err)
		}
		for _, t := range targets {
			d.Targets = append(d.Targets, target{
				ID:       t.ID,
				Name:     t.Name,
				Template: t.Template,
				Body:     t.Body.V,
				State:    t.State.V,
			})
		}

		b, err := goccy.MarshalIndent(d, "", "  ")
		if err != nil {
			log.Fatalf("encoding data: %v", err)
		}

		if err := os.WriteFile(*dataPath, b, 0600); err != nil {
			log.Fatal(err)
		}
	}
}
