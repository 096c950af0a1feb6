package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

type configuration struct {
	TowerURL       string
	Username       string
	Password       string
	Insecure       bool
	DBConnString   string
	PodmanSocket   string
	NodeContainers string
	DatastoreURL   string
	DatastoreImage string
	AwxPath        string
	TowerqaPath    string
	ProxyAddr      string
	WaitTimeout    time.Duration
	KeepContainers bool
}

var cfg configuration

func (c configuration) Validate() error {
	if c.TowerURL == "" {
		return errors.New("controller url is empty")
	}
	if _, err := url.Parse(c.TowerURL); err != nil {
		return fmt.Errorf("failed to parse controller url: %v", err)
	}
	if c.Password == "" {
		return errors.New("controller password is empty")
	}
	if c.DatastoreURL != "" && c.DatastoreImage != "" {
		return errors.New("datastore url and datastore image are mutually exclusive")
	}
	return nil
}

// nodeContainer is a podman container running a controller node, and the
// url its API answers on when it has one.
type nodeContainer struct {
	Name string
	URL  string
}

// Nodes parses -node-containers, a comma separated list of name or name=url.
func (c configuration) Nodes() []nodeContainer {
	if c.NodeContainers == "" {
		return nil
	}
	var nodes []nodeContainer
	for _, entry := range strings.Split(c.NodeContainers, ",") {
		name, u, _ := strings.Cut(strings.TrimSpace(entry), "=")
		nodes = append(nodes, nodeContainer{Name: name, URL: u})
	}
	return nodes
}

func main() {
	flag.StringVar(&cfg.TowerURL, "tower-url", "https://localhost:8043", "Controller under test")
	flag.StringVar(&cfg.Username, "tower-username", "admin", "Controller admin user")
	flag.StringVar(&cfg.Password, "tower-password", "", "Controller admin password")
	flag.BoolVar(&cfg.Insecure, "tower-insecure", true, "Skip TLS verification")
	flag.StringVar(&cfg.DBConnString, "db", "", "Postgres connection string of the controller database; database checks are skipped when empty")
	flag.StringVar(&cfg.PodmanSocket, "podman-socket", "unix:///run/user/1000/podman/podman.sock", "Podman socket path")
	flag.StringVar(&cfg.NodeContainers, "node-containers", "", "Comma separated name[=url] of the containers running execution nodes, excluding the node behind -tower-url; node tests are skipped when empty")
	flag.StringVar(&cfg.DatastoreURL, "datastore-url", "", "Request bin webhooks are posted to (default: an in-process one)")
	flag.StringVar(&cfg.DatastoreImage, "datastore-image", "", "Request bin image to start with podman instead of the in-process one")
	flag.StringVar(&cfg.AwxPath, "awx", "awx", "Path of the awx command line client")
	flag.StringVar(&cfg.TowerqaPath, "towerqa", "towerqa", "Path of the towerqa binary")
	flag.StringVar(&cfg.ProxyAddr, "proxy-addr", "127.0.0.1:18043", "Address of the recording proxy in front of the controller")
	flag.DurationVar(&cfg.WaitTimeout, "wait-timeout", 5*time.Minute, "Timeout of every job wait")
	flag.BoolVar(&cfg.KeepContainers, "keep-containers", false, "Keep containers running after test completion (useful for debugging)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("failed to validate configuration: %v", err)
	}

	RegisterFailHandler(Fail)
	if !RunSpecs(&testing.T{}, "E2E Suite") {
		os.Exit(1)
	}
}
