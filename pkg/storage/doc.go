// Package storage persists the agent roster.
//
// The Store interface is backed by SQLite by default, with a MySQL
// implementation selectable through configuration:
//
//	store, err := storage.NewStore(cfg.Database)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.SaveAgent(&protocol.AgentMetadata{...})
//	agents, err := store.GetAllAgents()
//
// The roster mirrors what agents reported at connect time plus their last
// seen timestamps; live session state is never written here.
package storage
