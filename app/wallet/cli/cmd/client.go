package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fatih/color"
)

var (
	label   = color.New(color.FgCyan)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
)

var client = http.Client{
	Timeout: time.Minute,
}

// loadWallet reads the private key file of the selected account.
func loadWallet() (signature.Wallet, error) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return signature.Wallet{}, err
	}

	return signature.ToWallet(privateKey), nil
}

func get(path string, out any) error {
	resp, err := client.Get(url + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, out)
}

func post(path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(url+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, out)
}

// decode reads the response into out, or turns an error response from the
// node into an error.
func decode(resp *http.Response, out any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		var er errs.Response
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return fmt.Errorf("node responded %s", resp.Status)
		}

		msg := er.Error
		for field, fe := range er.Fields {
			msg += fmt.Sprintf("\n  %s: %s", field, fe)
		}
		return errors.New(msg)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
