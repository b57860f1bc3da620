package server

import (
	"anoa.com/mediagallery/internal/memstore"
	characterRepo "anoa.com/mediagallery/internal/modules/character/repository"
	mediaRepo "anoa.com/mediagallery/internal/modules/media/repository"
	tagRepo "anoa.com/mediagallery/internal/modules/tag/repository"
	userRepo "anoa.com/mediagallery/internal/modules/user/repository"
	"anoa.com/mediagallery/pkg/database"
	"gorm.io/gorm"
)

// Stores is the persistence layer every service is built on.
type Stores struct {
	Tx         database.Transactor
	Users      userRepo.UserRepository
	Characters characterRepo.CharacterRepository
	Tags       tagRepo.TagRepository
	Media      mediaRepo.MediaRepository
}

func PostgresStores(db *gorm.DB) Stores {
	return Stores{
		Tx:         database.NewTransactor(db),
		Users:      userRepo.NewUserRepository(db),
		Characters: characterRepo.NewCharacterRepository(db),
		Tags:       tagRepo.NewTagRepository(db),
		Media:      mediaRepo.NewMediaRepository(db),
	}
}

func MemoryStores(s *memstore.Store) Stores {
	return Stores{
		Tx:         s,
		Users:      s.Users(),
		Characters: s.Characters(),
		Tags:       s.Tags(),
		Media:      s.Media(),
	}
}
