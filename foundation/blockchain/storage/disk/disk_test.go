package disk_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/disk"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_ReadWrite(t *testing.T) {
	t.Log("Given the need to store blocks on disk.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen writing a chain of blocks.", testID)
		{
			d, err := disk.New(t.TempDir())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open storage: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to open storage.", success, testID)

			gen := database.GenesisBlock(genesis.Default())
			next, err := database.POW(context.Background(), database.POWArgs{
				Number:        1,
				PrevBlockHash: gen.Hash,
				Messages: []database.Message{
					{ID: "m1", From: "a", Contract: "c", Data: map[string]any{"n": 5}, Gas: 1000},
				},
			}, func(string, ...any) {})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}

			for _, b := range []database.Block{gen, next} {
				if err := d.Write(b); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to write block %d: %v", failed, testID, b.Header.Number, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to write blocks.", success, testID)

			var blocks []database.Block
			iter := d.ForEach()
			for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to iterate: %v", failed, testID, err)
				}
				blocks = append(blocks, block)
			}

			if len(blocks) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould get back 2 blocks, got %d.", failed, testID, len(blocks))
			}
			t.Logf("\t%s\tTest %d:\tShould get back 2 blocks.", success, testID)

			if blocks[0].Hash != gen.Hash || blocks[1].Hash != next.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould get back the same hashes.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the same hashes.", success, testID)

			if !blocks[0].Transactions[0].Amount.Equal(decimal.NewFromInt(1_000_000_000_000)) {
				t.Fatalf("\t%s\tTest %d:\tShould get back the genesis amount, got %s.", failed, testID, blocks[0].Transactions[0].Amount)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the genesis amount.", success, testID)

			data, ok := blocks[1].Messages[0].Data.(map[string]any)
			if !ok || data["n"] != json.Number("5") {
				t.Fatalf("\t%s\tTest %d:\tShould get back the message data as a number, got %v.", failed, testID, blocks[1].Messages[0].Data)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the message data as a number.", success, testID)

			if err := d.Reset(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reset: %v", failed, testID, err)
			}

			if _, err := d.GetBlock(0); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not find a block after reset.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not find a block after reset.", success, testID)
		}
	}
}
