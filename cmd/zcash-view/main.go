// zcash-view CLI - viewing key transaction viewer
//
// Decodes raw Zcash transactions and shows what a viewing key can see in
// them: decrypted notes, memos, nullifiers, and transparent activity.
//
// Example usage:
//
//	# Inspect a viewing key
//	zcash-view parse-key uview1...
//
//	# Decrypt a raw transaction
//	zcash-view decrypt --tx tx.hex --key uview1... --network mainnet
//
//	# Scan for wallet reconciliation
//	zcash-view scan --tx tx.hex --key uview1... --height 2500000
//
//	# Derive addresses from a seed phrase
//	zcash-view derive --mnemonic "abandon ..." --account 0
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/suffix-labs/zcash-view/pkg/memo"
	"github.com/suffix-labs/zcash-view/pkg/result"
	"github.com/suffix-labs/zcash-view/pkg/txdecode"
	"github.com/suffix-labs/zcash-view/pkg/wallet"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "parse-key":
		cmdParseKey(args)
	case "validate-txid":
		cmdValidateTxID(args)
	case "decode":
		cmdDecode(args)
	case "decrypt":
		cmdDecrypt(args)
	case "scan":
		cmdScan(args)
	case "balance":
		cmdBalance(args)
	case "derive":
		cmdDerive(args)
	case "memo":
		cmdMemo(args)
	case "version":
		fmt.Println("zcash-view v0.1.0")
		fmt.Println("Viewing key transaction viewer for Zcash")
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`zcash-view - viewing key transaction viewer

Usage:
  zcash-view <command> [options]

Commands:
  parse-key <key>              Inspect a viewing key
  validate-txid <txid>         Check a transaction id format
  decode                       Decode a raw transaction without a key
  decrypt                      Decrypt a raw transaction with a viewing key
  scan                         Scan a transaction for wallet reconciliation
  balance                      Compute balances from a note list file
  derive                       Derive addresses and keys from a seed phrase
  memo <encode|decode>         Work with structured memos
  version                      Show version information
  help                         Show this help message

Examples:
  zcash-view parse-key uview1...

  zcash-view decrypt \
    --tx transaction.hex \
    --key uview1... \
    --network mainnet

  zcash-view scan \
    --tx transaction.hex \
    --key uview1... \
    --network mainnet \
    --height 2500000 \
    --known t1abc...

  zcash-view balance --notes notes.json`)
}

type commonOpts struct {
	Tx      string   `long:"tx" description:"Raw transaction hex, or a file containing it" required:"true"`
	Key     string   `long:"key" description:"Viewing key" required:"true"`
	Network string   `long:"network" description:"Network name" default:"mainnet"`
	Known   []string `long:"known" description:"Known transparent address (repeatable)"`
	Verbose bool     `short:"v" long:"verbose" description:"Enable debug logging"`
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return log
}

func parseOpts(opts any, args []string) {
	if _, err := flags.ParseArgs(opts, args); err != nil {
		os.Exit(1)
	}
}

// loadTxHex accepts the transaction hex directly or reads it from a file.
func loadTxHex(arg string) string {
	if _, err := os.Stat(arg); err == nil {
		data, err := os.ReadFile(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", arg, err)
			os.Exit(1)
		}
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(arg)
}

func printJSON(v any) {
	out := result.ToJSON(v)
	var indented json.RawMessage = out
	if pretty, err := json.MarshalIndent(indented, "", "  "); err == nil {
		out = pretty
	}
	fmt.Println(string(out))
}

func cmdParseKey(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: viewing key argument required")
		fmt.Fprintln(os.Stderr, "Usage: zcash-view parse-key <key>")
		os.Exit(1)
	}
	client := result.NewClient()
	printJSON(client.ParseViewingKey(args[0]))
}

func cmdValidateTxID(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: transaction id argument required")
		fmt.Fprintln(os.Stderr, "Usage: zcash-view validate-txid <txid>")
		os.Exit(1)
	}
	client := result.NewClient()
	res := client.CheckTxID(args[0])
	printJSON(res)
	if !res.Valid {
		os.Exit(1)
	}
}

// txSummary is the keyless decode view printed by the decode command.
type txSummary struct {
	TxID               string `json:"txid"`
	Version            uint32 `json:"version"`
	LockTime           uint32 `json:"lock_time"`
	ExpiryHeight       uint32 `json:"expiry_height"`
	TransparentInputs  int    `json:"transparent_inputs"`
	TransparentOutputs int    `json:"transparent_outputs"`
	SaplingSpends      int    `json:"sapling_spends"`
	SaplingOutputs     int    `json:"sapling_outputs"`
	OrchardActions     int    `json:"orchard_actions"`
}

func cmdDecode(args []string) {
	var opts struct {
		Tx      string `long:"tx" description:"Raw transaction hex, or a file containing it" required:"true"`
		Verbose bool   `short:"v" long:"verbose" description:"Enable debug logging"`
	}
	parseOpts(&opts, args)

	raw, err := hex.DecodeString(loadTxHex(opts.Tx))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Transaction is not valid hex: %v\n", err)
		os.Exit(1)
	}
	tx, err := txdecode.Decode(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(txSummary{
		TxID:               tx.TxIDString(),
		Version:            tx.Version,
		LockTime:           tx.LockTime,
		ExpiryHeight:       tx.ExpiryHeight,
		TransparentInputs:  len(tx.TransparentInputs),
		TransparentOutputs: len(tx.TransparentOutputs),
		SaplingSpends:      len(tx.SaplingSpends),
		SaplingOutputs:     len(tx.SaplingOutputs),
		OrchardActions:     len(tx.OrchardActions),
	})
}

func cmdDecrypt(args []string) {
	var opts commonOpts
	parseOpts(&opts, args)

	client := result.NewClient(
		result.WithLogger(newLogger(opts.Verbose)),
		result.WithKnownAddresses(opts.Known),
	)
	res := client.DecryptTransaction(loadTxHex(opts.Tx), opts.Key, opts.Network)
	printJSON(res)
	if !res.Success {
		os.Exit(1)
	}
}

func cmdScan(args []string) {
	var opts struct {
		commonOpts
		Height uint32 `long:"height" description:"Block height the transaction was mined at"`
	}
	parseOpts(&opts, args)

	client := result.NewClient(
		result.WithLogger(newLogger(opts.Verbose)),
		result.WithKnownAddresses(opts.Known),
	)
	res := client.ScanTransaction(loadTxHex(opts.Tx), opts.Key, opts.Network, opts.Height)
	printJSON(res)
	if !res.Success {
		os.Exit(1)
	}
}

func cmdBalance(args []string) {
	var opts struct {
		Notes string `long:"notes" description:"JSON file holding the note list" required:"true"`
	}
	parseOpts(&opts, args)

	data, err := os.ReadFile(opts.Notes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", opts.Notes, err)
		os.Exit(1)
	}
	var notes []wallet.Record
	if err := json.Unmarshal(data, &notes); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse note list: %v\n", err)
		os.Exit(1)
	}

	client := result.NewClient()
	res := client.CalculateBalance(notes)
	printJSON(res)
	if !res.Success {
		os.Exit(1)
	}
}

func cmdDerive(args []string) {
	var opts struct {
		Mnemonic string `long:"mnemonic" description:"BIP39 seed phrase; omit to generate a new one"`
		Network  string `long:"network" description:"Network name" default:"mainnet"`
		Account  uint32 `long:"account" description:"Account index" default:"0"`
		Index    uint64 `long:"index" description:"Address index" default:"0"`
	}
	parseOpts(&opts, args)

	mnemonic := opts.Mnemonic
	if mnemonic == "" {
		var err error
		if mnemonic, err = wallet.NewMnemonic(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate seed phrase: %v\n", err)
			os.Exit(1)
		}
	}

	client := result.NewClient()
	res := client.DeriveWallet(mnemonic, opts.Network, opts.Account, opts.Index)
	printJSON(res)
	if !res.Success {
		os.Exit(1)
	}
}

func cmdMemo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: zcash-view memo <encode|decode> [options]")
		os.Exit(1)
	}
	switch args[0] {
	case "encode":
		var opts struct {
			Text  string `long:"text" description:"Message text" required:"true"`
			Nonce uint32 `long:"nonce" description:"Message nonce" default:"0"`
		}
		parseOpts(&opts, args[1:])
		memos, err := memo.EncodeText(opts.Text, uint32(time.Now().Unix()), opts.Nonce)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Encode failed: %v\n", err)
			os.Exit(1)
		}
		for _, m := range memos {
			fmt.Println(hex.EncodeToString(m[:]))
		}
	case "decode":
		var opts struct {
			Memo string `long:"memo" description:"Memo hex (512 bytes), or a file containing it" required:"true"`
		}
		parseOpts(&opts, args[1:])
		raw, err := hex.DecodeString(loadTxHex(opts.Memo))
		if err != nil || len(raw) != memo.Size {
			fmt.Fprintf(os.Stderr, "Memo must be %d bytes of hex\n", memo.Size)
			os.Exit(1)
		}
		var buf [memo.Size]byte
		copy(buf[:], raw)
		msg := memo.DecodeOrText(buf)
		if msg == nil {
			fmt.Fprintln(os.Stderr, "Memo is empty or not text")
			os.Exit(1)
		}
		printJSON(map[string]any{
			"type":           msg.Type.String(),
			"timestamp":      msg.Timestamp,
			"nonce":          msg.Nonce,
			"fragment_total": msg.FragmentTotal,
			"fragment_index": msg.FragmentIndex,
			"text":           msg.Text(),
		})
	default:
		fmt.Fprintf(os.Stderr, "Unknown memo subcommand: %s\n", args[0])
		os.Exit(1)
	}
}
