// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (C) 2015-2022 The Lightning Network Developers

package multisigcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/lightningnetwork/lnd/cert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon-bakery.v2/bakery"
)

const (
	// outputFilePermissions is the file permission that is used for
	// creating the admin macaroon file. Only the owner and its group may
	// read it.
	outputFilePermissions = 0640

	// certOrganization is the organization of the self-signed TLS
	// certificate.
	certOrganization = "msigcheckd autogenerated cert"
)

var (
	// Version is the version of the daemon, set at build time.
	Version = "0.1.0"

	// Commit is the commit the daemon was built from, set at build time.
	Commit = ""
)

// ListenerWithSignal is a net.Listener that has an additional Ready channel
// that will be closed when a server starts listening.
type ListenerWithSignal struct {
	net.Listener

	// Ready will be closed by the server listening on Listener.
	Ready chan struct{}

	// MacChan is an optional way to pass the admin macaroon to the program
	// that started the daemon. The channel should be buffered to avoid the
	// daemon being blocked on sending to the channel.
	MacChan chan []byte
}

// ListenerCfg is a wrapper around custom listeners that can be passed to the
// daemon when calling its main method.
type ListenerCfg struct {
	// RPCListeners can be set to the listeners to use for the RPC server.
	// If empty a regular network listener will be created.
	RPCListeners []*ListenerWithSignal

	// Shutdown, if set, stops the daemon when closed. Otherwise the daemon
	// runs until it receives an interrupt signal.
	Shutdown <-chan struct{}
}

// Main is the true entry point for msigcheckd. It accepts a fully populated
// and validated main configuration struct and an optional listener config
// struct. This function starts all main system components then blocks until
// a shutdown is requested at which point everything is shut down again.
func Main(cfg *Config, lisCfg ListenerCfg) error {
	// mkErr makes it easy to return logged errors.
	mkErr := func(format string, args ...interface{}) error {
		chckLog.Errorf("Shutting down because error in main "+
			"method: "+format, args...)
		return fmt.Errorf(format, args...)
	}

	chckLog.Infof("Version: %s commit=%s", Version, Commit)
	chckLog.Infof("Active chain: bitcoin (network=%v)",
		cfg.ActiveNetParams.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverOpts, err := getTLSConfig(cfg)
	if err != nil {
		return mkErr("unable to load TLS credentials: %v", err)
	}

	var metrics *Metrics
	if cfg.Prometheus != nil && cfg.Prometheus.Listen != "" {
		metrics, err = NewMetrics()
		if err != nil {
			return mkErr("unable to create metrics: %v", err)
		}
	}

	server := newServer(NewChecker(cfg.ActiveNetParams), metrics)
	defer server.Stop()

	// Unless macaroons are disabled, every request has to carry a macaroon
	// signed by our root key.
	var (
		macChecker *bakery.Checker
		adminMac   []byte
	)
	if !cfg.NoMacaroons {
		networkDir := filepath.Join(
			cfg.DataDir, cfg.ActiveNetParams.Name,
		)
		rootKey, err := loadRootKey(
			filepath.Join(networkDir, rootKeyFilename),
		)
		if err != nil {
			return mkErr("unable to load macaroon root key: %v", err)
		}

		bkry := newBakery(rootKey)
		macChecker = bkry.Checker

		adminMac, err = bakeAdminMacaroon(ctx, bkry)
		if err != nil {
			return mkErr("error baking macaroon: %v", err)
		}

		if !fileExists(cfg.AdminMacPath) {
			err = os.WriteFile(
				cfg.AdminMacPath, adminMac, outputFilePermissions,
			)
			if err != nil {
				return mkErr("error writing admin macaroon: %v",
					err)
			}
			chckLog.Infof("Wrote admin macaroon to %s",
				cfg.AdminMacPath)
		}
	}

	// Initialize, and register our implementation of the gRPC interface
	// exported by the rpcServer.
	rpcServer := newRPCServer(server, macChecker)
	grpcServer := grpc.NewServer(
		append(serverOpts, rpcServer.serverOpts()...)...,
	)
	defer grpcServer.Stop()

	err = rpcServer.RegisterWithGrpcServer(grpcServer)
	if err != nil {
		return mkErr("error registering gRPC server: %v", err)
	}

	// If we have chosen to start with a dedicated listener for the
	// rpc server, we set it directly.
	grpcListeners := append(
		[]*ListenerWithSignal{}, lisCfg.RPCListeners...,
	)
	if len(grpcListeners) == 0 {
		// Otherwise we create listeners from the RPCListeners defined
		// in the config.
		for _, grpcEndpoint := range cfg.RPCListeners {
			lis, err := net.Listen("tcp", grpcEndpoint)
			if err != nil {
				return mkErr("unable to listen on %s: %v",
					grpcEndpoint, err)
			}
			defer lis.Close()

			grpcListeners = append(
				grpcListeners, &ListenerWithSignal{
					Listener: lis,
					Ready:    make(chan struct{}),
				},
			)
		}
	}

	startGrpcListen(grpcServer, grpcListeners)

	for _, lis := range grpcListeners {
		if lis.MacChan != nil && adminMac != nil {
			lis.MacChan <- adminMac
		}
	}

	if metrics != nil {
		metricsServer := &http.Server{
			Addr:              cfg.Prometheus.Listen,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			chckLog.Infof("Prometheus metrics listening on %s",
				cfg.Prometheus.Listen)

			err := metricsServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				chckLog.Errorf("Prometheus metrics server "+
					"failed: %v", err)
			}
		}()
		defer func() {
			_ = metricsServer.Shutdown(context.Background())
		}()
	}

	// Wait for the shutdown signal.
	if lisCfg.Shutdown != nil {
		<-lisCfg.Shutdown
	} else {
		chckLog.Infof("Press ctrl-c to exit")

		sigint := make(chan os.Signal, 1)
		signal.Notify(
			sigint, os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
		)
		<-sigint
	}

	return nil
}

// getTLSConfig returns a TLS configuration for the gRPC server.
func getTLSConfig(cfg *Config) ([]grpc.ServerOption, error) {
	// Ensure we create TLS key and certificate if they don't exist.
	if !fileExists(cfg.TLSCertPath) && !fileExists(cfg.TLSKeyPath) {
		chckLog.Infof("Generating TLS certificates...")
		err := genCertPair(cfg)
		if err != nil {
			return nil, err
		}
		chckLog.Infof("Done generating TLS certificates")
	}

	certData, parsedCert, err := cert.LoadCert(
		cfg.TLSCertPath, cfg.TLSKeyPath,
	)
	if err != nil {
		return nil, err
	}

	// We check whether the certificate we have on disk match the IPs and
	// domains specified by the config. If the extra IPs or domains have
	// changed from when the certificate was created, we will refresh the
	// certificate if auto refresh is active.
	refresh := false
	if cfg.TLSAutoRefresh {
		refresh, err = cert.IsOutdated(
			parsedCert, cfg.TLSExtraIPs,
			cfg.TLSExtraDomains, cfg.TLSDisableAutofill,
		)
		if err != nil {
			return nil, err
		}
	}

	// If the certificate expired or it was outdated, delete it and the TLS
	// key and generate a new pair.
	if time.Now().After(parsedCert.NotAfter) || refresh {
		chckLog.Info("TLS certificate is expired or outdated, " +
			"generating a new one")

		if err := os.Remove(cfg.TLSCertPath); err != nil {
			return nil, err
		}
		if err := os.Remove(cfg.TLSKeyPath); err != nil {
			return nil, err
		}

		if err := genCertPair(cfg); err != nil {
			return nil, err
		}
		chckLog.Infof("Done renewing TLS certificates")

		// Reload the certificate data.
		certData, _, err = cert.LoadCert(
			cfg.TLSCertPath, cfg.TLSKeyPath,
		)
		if err != nil {
			return nil, err
		}
	}

	tlsCfg := cert.TLSConfFromCert(certData)

	serverCreds := credentials.NewTLS(tlsCfg)
	serverOpts := []grpc.ServerOption{grpc.Creds(serverCreds)}

	return serverOpts, nil
}

func genCertPair(cfg *Config) error {
	return cert.GenCertPair(
		certOrganization, cfg.TLSCertPath, cfg.TLSKeyPath,
		cfg.TLSExtraIPs, cfg.TLSExtraDomains, cfg.TLSDisableAutofill,
		cfg.TLSCertDuration,
	)
}

// startGrpcListen starts the gRPC server on the passed listeners.
func startGrpcListen(grpcServer *grpc.Server,
	listeners []*ListenerWithSignal) {

	// Use a WaitGroup so we can be sure all listeners are up before we
	// return.
	var wg sync.WaitGroup

	for _, lis := range listeners {
		wg.Add(1)
		go func(lis *ListenerWithSignal) {
			chckLog.Infof("RPC server listening on %s", lis.Addr())

			// Close the ready chan to indicate we are listening.
			close(lis.Ready)

			wg.Done()
			_ = grpcServer.Serve(lis)
		}(lis)
	}

	wg.Wait()
}
