// Package result is the outward facing API of the viewer. It wraps the
// decode, key, scan, and wallet packages behind a Client whose methods
// return self describing envelopes: success plus a payload, or failure
// plus an error string. Serialization to JSON happens exactly once, at
// this boundary, via ToJSON.
//
// Every operation contains panics from malformed input and reports them
// as failed envelopes instead of crashing the caller.
package result

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/suffix-labs/zcash-view/pkg/address"
	"github.com/suffix-labs/zcash-view/pkg/scan"
	"github.com/suffix-labs/zcash-view/pkg/txdecode"
	"github.com/suffix-labs/zcash-view/pkg/viewkey"
	"github.com/suffix-labs/zcash-view/pkg/wallet"
)

// Client is a handle over the viewer operations. A zero value is not
// usable; construct with NewClient.
type Client struct {
	log            *zap.Logger
	knownAddresses []string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger attaches a logger. The default discards logs.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithKnownAddresses sets the default transparent address set matched
// during scans.
func WithKnownAddresses(addrs []string) Option {
	return func(c *Client) { c.knownAddresses = addrs }
}

// NewClient builds a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToJSON serializes an envelope. This is the single serialization step of
// the boundary; internal packages never marshal.
func ToJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Envelopes are plain data types; failure here is a programming
		// error surfaced as a minimal failure document.
		return []byte(fmt.Sprintf(`{"success":false,"error":%q}`, err.Error()))
	}
	return b
}

// ValidateTxID checks that a transaction id is exactly 64 hex characters.
func ValidateTxID(txid string) error {
	if len(txid) != 64 {
		return fmt.Errorf("transaction ID must be 64 hexadecimal characters, got %d", len(txid))
	}
	if _, err := hex.DecodeString(txid); err != nil {
		return fmt.Errorf("transaction ID must be hexadecimal: %v", err)
	}
	return nil
}

// TxIDValidation is the validate_txid envelope.
type TxIDValidation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// CheckTxID validates a transaction id string and reports the result as an
// envelope.
func (c *Client) CheckTxID(txid string) *TxIDValidation {
	if err := ValidateTxID(txid); err != nil {
		return &TxIDValidation{Error: err.Error()}
	}
	return &TxIDValidation{Valid: true}
}

// guard converts a panic into a failure on the enclosing envelope. Usage:
// defer guard(&ok, &errMsg).
func guard(success *bool, errMsg *string) {
	if r := recover(); r != nil {
		*success = false
		*errMsg = fmt.Sprintf("internal error: %v", r)
	}
}

// ViewingKeyInfo describes a parsed viewing key.
type ViewingKeyInfo struct {
	Valid          bool   `json:"valid"`
	KeyType        string `json:"key_type,omitempty"`
	Capability     string `json:"capability,omitempty"`
	HasSapling     bool   `json:"has_sapling"`
	HasOrchard     bool   `json:"has_orchard"`
	HasTransparent bool   `json:"has_transparent"`
	Network        string `json:"network,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ParseViewingKey inspects a viewing key string without retaining it.
func (c *Client) ParseViewingKey(keyStr string) *ViewingKeyInfo {
	info := &ViewingKeyInfo{}
	defer guard(&info.Valid, &info.Error)

	key, err := viewkey.Parse(keyStr)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	defer key.Zero()

	info.Valid = true
	info.KeyType = key.KeyType
	info.Capability = key.Capability.String()
	info.HasSapling = key.HasSapling()
	info.HasOrchard = key.HasOrchard()
	info.HasTransparent = key.HasTransparent()
	info.Network = string(key.Network)
	c.log.Debug("parsed viewing key",
		zap.String("type", key.KeyType),
		zap.String("network", string(key.Network)))
	return info
}

// SaplingOutputView is a Sapling output in a decrypted transaction view.
type SaplingOutputView struct {
	Index          int    `json:"index"`
	Value          uint64 `json:"value"`
	Memo           string `json:"memo"`
	Address        string `json:"address,omitempty"`
	NoteCommitment string `json:"note_commitment"`
	Nullifier      string `json:"nullifier,omitempty"`
}

// OrchardActionView is an Orchard action in a decrypted transaction view.
type OrchardActionView struct {
	Index          int    `json:"index"`
	Value          uint64 `json:"value"`
	Memo           string `json:"memo"`
	Address        string `json:"address,omitempty"`
	NoteCommitment string `json:"note_commitment"`
	Nullifier      string `json:"nullifier,omitempty"`
}

// TransparentInputView is a transparent input in a decrypted transaction
// view.
type TransparentInputView struct {
	Index        int    `json:"index"`
	PrevoutTxID  string `json:"prevout_txid"`
	PrevoutIndex uint32 `json:"prevout_index"`
}

// TransparentOutputView is a transparent output in a decrypted transaction
// view.
type TransparentOutputView struct {
	Index        int    `json:"index"`
	Value        uint64 `json:"value"`
	ScriptPubKey string `json:"script_pubkey"`
	Address      string `json:"address,omitempty"`
}

// DecryptedTransaction is the per transaction view assembled from a scan.
type DecryptedTransaction struct {
	TxID               string                  `json:"txid"`
	Version            uint32                  `json:"version"`
	SaplingOutputs     []SaplingOutputView     `json:"sapling_outputs"`
	OrchardActions     []OrchardActionView     `json:"orchard_actions"`
	TransparentInputs  []TransparentInputView  `json:"transparent_inputs"`
	TransparentOutputs []TransparentOutputView `json:"transparent_outputs"`
	Fee                *uint64                 `json:"fee"`
}

// DecryptionResult is the decrypt_transaction envelope.
type DecryptionResult struct {
	Success     bool                  `json:"success"`
	Transaction *DecryptedTransaction `json:"transaction,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// parseInputs decodes the common (tx hex, key, network) triple and
// enforces that the key belongs to the requested network.
func parseInputs(txHex, keyStr, network string) (*txdecode.Tx, *viewkey.ViewingKey, error) {
	net, err := address.ParseNetwork(network)
	if err != nil {
		return nil, nil, err
	}
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, nil, fmt.Errorf("transaction is not valid hex: %v", err)
	}
	tx, err := txdecode.Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	key, err := viewkey.Parse(keyStr)
	if err != nil {
		return nil, nil, err
	}
	if key.Network != net {
		key.Zero()
		return nil, nil, &viewkey.KeyError{
			Code:    viewkey.ErrNetworkMismatch,
			Message: fmt.Sprintf("key is for %s, requested %s", key.Network, net),
		}
	}
	return tx, key, nil
}

// DecryptTransaction decodes a raw transaction and renders everything the
// viewing key can see in it.
func (c *Client) DecryptTransaction(txHex, keyStr, network string) *DecryptionResult {
	res := &DecryptionResult{Success: true}
	defer guard(&res.Success, &res.Error)

	tx, key, err := parseInputs(txHex, keyStr, network)
	if err != nil {
		return &DecryptionResult{Error: err.Error()}
	}
	defer key.Zero()

	sr := scan.Transaction(tx, key, scan.Options{KnownAddresses: c.knownAddresses})

	view := &DecryptedTransaction{
		TxID:               sr.TxID,
		Version:            tx.Version,
		SaplingOutputs:     []SaplingOutputView{},
		OrchardActions:     []OrchardActionView{},
		TransparentInputs:  []TransparentInputView{},
		TransparentOutputs: []TransparentOutputView{},
	}

	for i, in := range sr.TransparentSpends {
		view.TransparentInputs = append(view.TransparentInputs, TransparentInputView{
			Index:        i,
			PrevoutTxID:  in.PrevoutTxID,
			PrevoutIndex: in.PrevoutIndex,
		})
	}
	for _, out := range sr.TransparentOutputs {
		v := TransparentOutputView{
			Index:        out.Index,
			Value:        out.Value,
			ScriptPubKey: hex.EncodeToString(tx.TransparentOutputs[out.Index].ScriptPubKey),
		}
		if out.Address != nil {
			v.Address = *out.Address
		}
		view.TransparentOutputs = append(view.TransparentOutputs, v)
	}

	for _, n := range sr.Notes {
		switch n.Pool {
		case scan.PoolSapling:
			view.SaplingOutputs = append(view.SaplingOutputs, SaplingOutputView{
				Index:          n.OutputIndex,
				Value:          n.Value,
				Memo:           noteMemo(&n),
				Address:        strOrEmpty(n.Address),
				NoteCommitment: n.Commitment,
				Nullifier:      strOrEmpty(n.Nullifier),
			})
		case scan.PoolOrchard:
			view.OrchardActions = append(view.OrchardActions, OrchardActionView{
				Index:          n.OutputIndex,
				Value:          n.Value,
				Memo:           noteMemo(&n),
				Address:        strOrEmpty(n.Address),
				NoteCommitment: n.Commitment,
				Nullifier:      strOrEmpty(n.Nullifier),
			})
		}
	}

	// The fee is only observable when the transaction has no transparent
	// inputs, since input values live in the spent outputs.
	if len(tx.TransparentInputs) == 0 {
		balance := tx.SaplingValueBalance + tx.OrchardValueBalance
		for _, out := range tx.TransparentOutputs {
			balance -= int64(out.Value)
		}
		if balance >= 0 {
			fee := uint64(balance)
			view.Fee = &fee
		}
	}

	c.log.Debug("decrypted transaction",
		zap.String("txid", sr.TxID),
		zap.Int("sapling_outputs", len(view.SaplingOutputs)),
		zap.Int("orchard_actions", len(view.OrchardActions)))
	res.Transaction = view
	return res
}

// noteMemo renders a note's memo for the transaction view. Outputs that
// did not decrypt show a fixed placeholder.
func noteMemo(n *scan.Note) string {
	if !n.Match {
		return "(encrypted)"
	}
	if n.Memo == nil {
		return ""
	}
	return *n.Memo
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ScanResult is the scan_transaction envelope.
type ScanResult struct {
	Success bool         `json:"success"`
	Result  *scan.Result `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// ScanTransaction scans a raw transaction for wallet reconciliation:
// matched notes, revealed nullifiers, and transparent activity.
func (c *Client) ScanTransaction(txHex, keyStr, network string, height uint32) *ScanResult {
	res := &ScanResult{Success: true}
	defer guard(&res.Success, &res.Error)

	tx, key, err := parseInputs(txHex, keyStr, network)
	if err != nil {
		return &ScanResult{Error: err.Error()}
	}
	defer key.Zero()

	res.Result = scan.Transaction(tx, key, scan.Options{
		Height:         height,
		KnownAddresses: c.knownAddresses,
	})
	c.log.Debug("scanned transaction",
		zap.String("txid", res.Result.TxID),
		zap.Int("notes", len(res.Result.Notes)))
	return res
}

// BalanceResult is the calculate_balance envelope.
type BalanceResult struct {
	Success bool             `json:"success"`
	Balance *wallet.Balances `json:"balance,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// CalculateBalance sums the unspent records in a note list.
func (c *Client) CalculateBalance(notes []wallet.Record) *BalanceResult {
	res := &BalanceResult{Success: true}
	defer guard(&res.Success, &res.Error)

	b := wallet.Balance(notes)
	res.Balance = &b
	return res
}

// NotesResult is the envelope for note list operations.
type NotesResult struct {
	Success bool            `json:"success"`
	Notes   []wallet.Record `json:"notes,omitempty"`
	Marked  int             `json:"marked"`
	Error   string          `json:"error,omitempty"`
}

// MergeScanResult folds a scan result into a note list.
func (c *Client) MergeScanResult(notes []wallet.Record, sr *scan.Result, walletID string, height uint32) *NotesResult {
	res := &NotesResult{Success: true}
	defer guard(&res.Success, &res.Error)

	if sr == nil {
		return &NotesResult{Error: "missing scan result"}
	}
	res.Notes = wallet.Merge(notes, sr, walletID, height)
	return res
}

// AddNoteToList upserts a single record into a note list.
func (c *Client) AddNoteToList(notes []wallet.Record, rec wallet.Record) *NotesResult {
	res := &NotesResult{Success: true}
	defer guard(&res.Success, &res.Error)

	if err := ValidateTxID(rec.TxID); err != nil {
		return &NotesResult{Error: err.Error()}
	}
	res.Notes = wallet.AddNote(notes, rec)
	return res
}

// MarkNotesSpent marks shielded records as spent by nullifier.
func (c *Client) MarkNotesSpent(notes []wallet.Record, nullifiers []scan.SpentNullifier, spendingTxID string) *NotesResult {
	res := &NotesResult{Success: true}
	defer guard(&res.Success, &res.Error)

	if err := ValidateTxID(spendingTxID); err != nil {
		return &NotesResult{Error: err.Error()}
	}
	res.Notes, res.Marked = wallet.MarkNotesSpent(notes, nullifiers, spendingTxID)
	return res
}

// MarkTransparentSpent marks transparent records consumed by outpoints.
func (c *Client) MarkTransparentSpent(notes []wallet.Record, spends []scan.TransparentSpend, spendingTxID string) *NotesResult {
	res := &NotesResult{Success: true}
	defer guard(&res.Success, &res.Error)

	if err := ValidateTxID(spendingTxID); err != nil {
		return &NotesResult{Error: err.Error()}
	}
	res.Notes, res.Marked = wallet.MarkTransparentSpent(notes, spends, spendingTxID)
	return res
}

// WalletResult is the wallet derivation envelope.
type WalletResult struct {
	Success bool         `json:"success"`
	Wallet  *wallet.Info `json:"wallet,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// DeriveWallet derives addresses and viewing keys from a seed phrase.
func (c *Client) DeriveWallet(mnemonic, network string, account uint32, addressIndex uint64) *WalletResult {
	res := &WalletResult{Success: true}
	defer guard(&res.Success, &res.Error)

	net, err := address.ParseNetwork(network)
	if err != nil {
		return &WalletResult{Error: err.Error()}
	}
	info, err := wallet.Derive(mnemonic, net, account, addressIndex)
	if err != nil {
		return &WalletResult{Error: err.Error()}
	}
	res.Wallet = info
	return res
}
