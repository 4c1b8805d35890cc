package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Read-only inspector for the message store. Run it against a live
// data directory to see what keys are actually on disk:
//
//	go run ./tools -db ./data -prefix msgid:
//	go run ./tools -db ./data -prefix user:id:
func main() {
	dbPath := flag.String("db", "./data", "Path to badger DB")
	prefix := flag.String("prefix", "msgid:", "Prefix to scan (msgid:, conv:, user:id:, user:name:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "From", "To", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			err := item.Value(func(v []byte) error {
				table.Append(describe(rawKey, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe renders one stored value into table columns, falling back
// to raw bytes for keys it does not recognize (index entries hold no
// value at all).
func describe(key string, value []byte) []string {
	switch {
	case strings.HasPrefix(key, "msgid:"):
		var msg struct {
			SenderID   int64     `json:"sender_id"`
			ReceiverID int64     `json:"receiver_id"`
			Type       string    `json:"message_type"`
			Timestamp  time.Time `json:"timestamp"`
			Read       bool      `json:"is_read"`
		}
		if err := json.Unmarshal(value, &msg); err != nil {
			return []string{key, "MESSAGE", "", "", "", "unmarshal error: " + err.Error()}
		}
		detail := msg.Type
		if msg.Read {
			detail += " (read)"
		}
		return []string{key, "MESSAGE", msg.Timestamp.Format("15:04:05"),
			fmt.Sprintf("%d", msg.SenderID), fmt.Sprintf("%d", msg.ReceiverID), detail}

	case strings.HasPrefix(key, "user:id:"):
		var user struct {
			Username string    `json:"username"`
			LastSeen time.Time `json:"last_seen"`
		}
		if err := json.Unmarshal(value, &user); err != nil {
			return []string{key, "USER", "", "", "", "unmarshal error: " + err.Error()}
		}
		return []string{key, "USER", user.LastSeen.Format("15:04:05"), "", "", user.Username}

	case strings.HasPrefix(key, "user:name:"):
		return []string{key, "INDEX", "", "", "", "id=" + string(value)}

	default:
		return []string{key, "RAW", "", "", "", fmt.Sprintf("%d bytes", len(value))}
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	return badger.Open(opts)
}
