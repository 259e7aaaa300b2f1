package main

import (
	"time"

	"editorial-pipeline/internal/infra/api"
)

type commandContext struct {
	apiURL  string
	token   string
	secret  string
	user    string
	jsonOut bool

	client *apiClient
}

func (c *commandContext) apiClient() (*apiClient, error) {
	if c.client != nil {
		return c.client, nil
	}
	token := c.token
	if token == "" && c.secret != "" {
		t, err := api.NewAuthenticator(c.secret).Mint(c.user, "editor", 15*time.Minute)
		if err != nil {
			return nil, err
		}
		token = t
	}
	c.client = newAPIClient(c.apiURL, token, nil)
	return c.client, nil
}
