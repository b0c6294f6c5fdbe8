package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tactizen/zkvote-node/log"
	"github.com/tactizen/zkvote-node/types"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
		return
	}
	if !DisabledLogging && log.Level() == log.LogLevelDebug {
		log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
	}
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// categoryFromRequest parses and validates the category URL parameter.
func categoryFromRequest(r *http.Request) (types.Category, *Error) {
	category := types.Category(chi.URLParam(r, CategoryURLParam))
	if !category.Valid() {
		err := ErrMalformedCategory.Withf("unknown category %q", category)
		return "", &err
	}
	return category, nil
}

// electionKeyFromRequest parses the category and election id URL parameters.
func electionKeyFromRequest(r *http.Request) (types.ElectionKey, *Error) {
	category, apiErr := categoryFromRequest(r)
	if apiErr != nil {
		return types.ElectionKey{}, apiErr
	}
	id, err := strconv.ParseUint(chi.URLParam(r, ElectionIDURLParam), 10, 64)
	if err != nil {
		apiErr := ErrMalformedParam.Withf("could not parse election id: %v", err)
		return types.ElectionKey{}, &apiErr
	}
	return types.ElectionKey{Category: category, ElectionID: id}, nil
}

// registryKeyFromRequest parses the category and scope URL parameters.
func registryKeyFromRequest(r *http.Request) (types.RegistryKey, *Error) {
	category, apiErr := categoryFromRequest(r)
	if apiErr != nil {
		return types.RegistryKey{}, apiErr
	}
	scope, err := strconv.ParseUint(chi.URLParam(r, ScopeURLParam), 10, 64)
	if err != nil {
		apiErr := ErrMalformedParam.Withf("could not parse scope: %v", err)
		return types.RegistryKey{}, &apiErr
	}
	return types.RegistryKey{Category: category, Scope: scope}, nil
}
