// Package telemetry implements the ingestion pipeline behind the agrolt
// dashboard: field devices publish sensor readings over MQTT, the pipeline
// normalizes each payload for the zone's firmware encoding, persists it as a
// versioned topic record, and fans it out in real time to connected viewers
// over WebSocket rooms.
//
// # Architecture
//
// The pipeline is a chain of small, explicitly wired services:
//
//	MQTT broker → Pipeline → SubscriptionRegistry (topic attribution)
//	                       → normalize.Normalizer (firmware encodings)
//	                       → VersionedStore       (demote+insert commit)
//	                       → Broadcaster          (ws room fan-out)
//
// Each service is constructed once at process start with the Options
// Pattern and threaded into its consumers; there is no ambient global
// state. Persistence goes through repository interfaces declared in this
// package and implemented under adapters/relica. The MQTT connection is
// owned by the Pipeline through the BusConnection interface, implemented
// under adapters/paho.
//
// # Topic model
//
// A topic identifies one telemetry stream per device×zone pair. Its name is
// the sanitized device number concatenated with the sanitized zone name
// (see BuildTopic). Every inbound message appends a new topic record; the
// record carrying the latest flag is the single currently-valid reading for
// that topic name. The demote-then-insert commit in VersionedStore makes a
// duplicated or missing latest flag structurally impossible.
//
// # Quick start
//
//	db, _ := sql.Open("mysql", dsn)
//	repos := relica.NewRepositories(db, "mysql")
//
//	store, _ := telemetry.NewVersionedStore(
//	    telemetry.WithStoreRepository(repos.TopicRecord),
//	    telemetry.WithStoreLogger(logger),
//	)
//
//	hub := ws.NewHub(logger)
//	bus := paho.NewClient(paho.Config{BrokerURL: "tcp://localhost:1883"}, logger)
//
//	pipeline, _ := telemetry.NewPipeline(
//	    telemetry.WithPipelineBus(bus),
//	    telemetry.WithPipelineDeviceRepository(repos.Device),
//	    telemetry.WithPipelineStore(store),
//	    telemetry.WithPipelineBroadcaster(hub),
//	    telemetry.WithPipelineLogger(logger),
//	)
//	if err := pipeline.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// See cmd/agrolt-server for the full wiring including the WebSocket
// endpoint, the HTTP query surface, and Prometheus metrics.
package telemetry
