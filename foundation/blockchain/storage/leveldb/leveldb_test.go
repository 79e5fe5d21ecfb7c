package leveldb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/leveldb"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Database(t *testing.T) {
	t.Log("Given the need to keep the chain in leveldb.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen reopening a database over the same store.", testID)
		{
			dir := t.TempDir()
			ev := func(string, ...any) {}

			store, err := leveldb.New(dir)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open leveldb: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to open leveldb.", success, testID)

			db, err := database.New(genesis.Default(), store, ev)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create the database: %v", failed, testID, err)
			}

			latest := db.LatestBlock()
			for i := 1; i <= 3; i++ {
				block, err := database.POW(context.Background(), database.POWArgs{
					Number:        latest.Header.Number + 1,
					PrevBlockHash: latest.Hash,
					Difficulty:    1,
				}, ev)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to mine block %d: %v", failed, testID, i, err)
				}

				if err := db.Write(block, ev); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to write block %d: %v", failed, testID, i, err)
				}
				latest = block
			}
			t.Logf("\t%s\tTest %d:\tShould be able to write 3 blocks.", success, testID)

			if err := db.Close(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to close the database: %v", failed, testID, err)
			}

			store, err = leveldb.New(dir)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reopen leveldb: %v", failed, testID, err)
			}
			defer store.Close()

			db, err = database.New(genesis.Default(), store, ev)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reload the database: %v", failed, testID, err)
			}

			if db.Count() != 4 || db.LatestBlock().Hash != latest.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould reload 4 blocks with the same tip, got %d.", failed, testID, db.Count())
			}
			t.Logf("\t%s\tTest %d:\tShould reload 4 blocks with the same tip.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen resetting the store.", testID)
		{
			store, err := leveldb.NewMemory()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open leveldb: %v", failed, testID, err)
			}
			defer store.Close()

			if err := store.Write(database.GenesisBlock(genesis.Default())); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to write: %v", failed, testID, err)
			}

			if err := store.Reset(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reset: %v", failed, testID, err)
			}

			if _, err := store.GetBlock(0); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get not found after reset, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get not found after reset.", success, testID)
		}
	}
}
