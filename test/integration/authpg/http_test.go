// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

//go:build integration

package authpg_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/noteful/noteful-auth/internal/auth"
	"github.com/noteful/noteful-auth/internal/auth/postgres"
	"github.com/noteful/noteful-auth/internal/httpapi"
)

const integrationSecret = "0123456789abcdef0123456789abcdef"

var _ = Describe("HTTP API over postgres", func() {
	var server *httptest.Server

	BeforeEach(func() {
		users := postgres.NewUserStore(env.pool)
		pool := auth.NewHashPool(auth.NewArgon2idHasher(), 2)
		signer, err := auth.NewTokenSigner([]byte(integrationSecret), time.Hour, auth.DefaultTokenIssuer)
		Expect(err).NotTo(HaveOccurred())
		registrar, err := auth.NewRegistrar(users, pool)
		Expect(err).NotTo(HaveOccurred())
		issuer, err := auth.NewIssuer(users, pool, signer)
		Expect(err).NotTo(HaveOccurred())
		handler, err := httpapi.NewHandler(registrar, issuer, httpapi.Options{})
		Expect(err).NotTo(HaveOccurred())

		server = httptest.NewServer(handler)
		DeferCleanup(server.Close)
	})

	request := func(method, path, token, body string) (*http.Response, map[string]any) {
		req, err := http.NewRequestWithContext(env.ctx, method, server.URL+path, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := server.Client().Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()

		var decoded map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&decoded)).To(Succeed())
		return resp, decoded
	}

	It("registers, logs in and resolves the token owner", func() {
		username := uniqueUsername("user0")
		body := `{"username":"` + username + `","password":"longenoughpassword","fullname":"User Zero"}`

		resp, created := request(http.MethodPost, "/api/users", "", body)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		Expect(created).To(HaveKeyWithValue("username", username))
		Expect(created).NotTo(HaveKey("password"))

		resp, _ = request(http.MethodPost, "/api/users", "", body)
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		resp, login := request(http.MethodPost, "/api/login", "",
			`{"username":"`+username+`","password":"longenoughpassword"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		token, ok := login["authToken"].(string)
		Expect(ok).To(BeTrue())

		resp, me := request(http.MethodGet, "/api/me", token, "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(me).To(HaveKeyWithValue("id", created["id"]))
		Expect(me).To(HaveKeyWithValue("fullname", "User Zero"))
	})

	It("rejects a wrong password with 401", func() {
		username := uniqueUsername("user0")
		resp, _ := request(http.MethodPost, "/api/users", "",
			`{"username":"`+username+`","password":"longenoughpassword"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		resp, _ = request(http.MethodPost, "/api/login", "",
			`{"username":"`+username+`","password":"wrongpassword"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})
})
