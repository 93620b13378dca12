package service

import (
	"github.com/investkaps/investkaps-dev-sub000/internal/audit"
	"github.com/investkaps/investkaps-dev-sub000/internal/client"
	"github.com/investkaps/investkaps-dev-sub000/internal/config"
	"github.com/investkaps/investkaps-dev-sub000/internal/encryption"
	"github.com/investkaps/investkaps-dev-sub000/internal/hashing"
	"github.com/investkaps/investkaps-dev-sub000/internal/repository"
	"github.com/investkaps/investkaps-dev-sub000/internal/repository/scylla"
)

// ServiceFactory builds and caches the service singletons.
type ServiceFactory struct {
	config        *config.Config
	userRepo      scylla.UserRepository
	sessionStore  repository.SessionStore
	gateway       client.SMSGateway
	recorder      audit.EventRecorder
	hasher        *hashing.Hasher
	encryptionMgr *encryption.Manager

	userService *UserService
	otpService  *OTPService
}

func NewServiceFactory(
	cfg *config.Config,
	userRepo scylla.UserRepository,
	sessionStore repository.SessionStore,
	gateway client.SMSGateway,
	recorder audit.EventRecorder,
	hasher *hashing.Hasher,
	encryptionMgr *encryption.Manager,
) *ServiceFactory {
	return &ServiceFactory{
		config:        cfg,
		userRepo:      userRepo,
		sessionStore:  sessionStore,
		gateway:       gateway,
		recorder:      recorder,
		hasher:        hasher,
		encryptionMgr: encryptionMgr,
	}
}

func (f *ServiceFactory) UserService() *UserService {
	if f.userService == nil {
		f.userService = NewUserService(f.config, f.userRepo, f.hasher, f.encryptionMgr)
	}
	return f.userService
}

func (f *ServiceFactory) OTPService() *OTPService {
	if f.otpService == nil {
		f.otpService = NewOTPService(f.config, f.sessionStore, f.gateway, f.UserService(), f.recorder, f.hasher)
	}
	return f.otpService
}
