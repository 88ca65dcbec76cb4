package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"nftstake/crypto"
	"nftstake/native/bank"
	"nftstake/native/staking"
)

func decodeAddress(field, value string) (crypto.Address, error) {
	addr, _, err := crypto.DecodeAddress(value)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// optionalAddress decodes value, returning fallback when value is blank.
func optionalAddress(field, value string, fallback crypto.Address) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return decodeAddress(field, value)
}

func (s *Server) buildRequest(body UnstakeRequest) (staking.UnstakeRequest, error) {
	user, err := decodeAddress("user", body.User)
	if err != nil {
		return staking.UnstakeRequest{}, err
	}
	asset, err := decodeAddress("asset", body.Asset)
	if err != nil {
		return staking.UnstakeRequest{}, err
	}
	collection, err := decodeAddress("collection", body.Collection)
	if err != nil {
		return staking.UnstakeRequest{}, err
	}
	req, err := s.engine.CanonicalRequest(user, asset, collection)
	if err != nil {
		return staking.UnstakeRequest{}, err
	}
	overrides := []struct {
		field string
		value string
		dst   *crypto.Address
	}{
		{"stakeAccount", body.StakeAccount, &req.StakeAccount},
		{"config", body.Config, &req.Config},
		{"userAccount", body.UserAccount, &req.UserAccount},
		{"collectionInfo", body.CollectionInfo, &req.CollectionInfo},
		{"custodyProgram", body.CustodyProgram, &req.CustodyProgram},
	}
	for _, o := range overrides {
		if *o.dst, err = optionalAddress(o.field, o.value, *o.dst); err != nil {
			return staking.UnstakeRequest{}, err
		}
	}
	return req, nil
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var body UnstakeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	req, err := s.buildRequest(body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	receipt, err := s.engine.Unstake(r.Context(), req)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReceiptResponse{Receipt: receipt})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	user, err := decodeAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	ledger := s.engine.Ledger()
	accountAddr, err := ledger.UserAddress(user)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	acct, err := ledger.User(accountAddr, user)
	if errors.Is(err, staking.ErrAccountNotInitialized) {
		writeError(w, r, http.StatusNotFound, "not_found", "user account not initialized")
		return
	}
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	balance, err := bank.Balance(s.state, user)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{
		Address:      user,
		Account:      accountAddr,
		Points:       acct.Points,
		AmountStaked: acct.AmountStaked,
		Balance:      balance,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", "history index disabled")
		return
	}
	user, err := decodeAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
	}
	rows, err := s.history.ByUser(user, limit)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	total, err := s.history.TotalPoints(user)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	resp := HistoryResponse{Address: user, TotalPoints: total, Unstakes: make([]HistoryEntry, 0, len(rows))}
	for _, row := range rows {
		resp.Unstakes = append(resp.Unstakes, historyEntry(row))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAssetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", "history index disabled")
		return
	}
	asset, err := decodeAddress("asset", chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	rows, err := s.history.ByAsset(asset)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	locks, err := s.history.LockEvents(asset)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	resp := AssetHistoryResponse{
		Asset:      asset,
		Unstakes:   make([]HistoryEntry, 0, len(rows)),
		LockEvents: make([]LockEntry, 0, len(locks)),
	}
	for _, row := range rows {
		resp.Unstakes = append(resp.Unstakes, historyEntry(row))
	}
	for _, row := range locks {
		resp.LockEvents = append(resp.LockEvents, lockEntry(row))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePreview reports what unstaking an asset would yield now without
// touching state. The asset's current owner is used unless ?user= is given.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	assetAddr, err := decodeAddress("asset", chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	asset, ok, err := s.custody.Asset(s.state, assetAddr)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", "asset not found")
		return
	}
	user, err := optionalAddress("user", r.URL.Query().Get("user"), asset.Owner)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req, err := s.engine.CanonicalRequest(user, assetAddr, asset.Collection)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	receipt, err := s.engine.PreviewUnstake(req)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReceiptResponse{Receipt: receipt, Preview: true})
}
