// Copyright 2021 Airbus Defence and Space
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gcs serves raster files stored on Google Cloud Storage as
// io.ReaderAt implementations backed by an in-memory block cache, suitable
// for use with tilestats.NewRawSource.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/airbusgeo/tilestats/internal/blockcache"
	pubcache "github.com/airbusgeo/tilestats/pkg/blockcache"

	"cloud.google.com/go/storage"
	lru "github.com/hashicorp/golang-lru"
	"google.golang.org/api/googleapi"
)

// Handler reads ranges of gs:// objects through a shared block cache
type Handler struct {
	ctx                context.Context
	client             *storage.Client
	cacher             pubcache.Cacher
	blockSize          int
	maxCachedBlocks    int
	maxCachedMetadatas int
	blockCache         *blockcache.BlockCache
	sizecache          *lru.Cache
	billingProjectID   string
}

//Option is an option that can be passed to NewHandler
type Option func(o *Handler)

// Client sets the cloud.google.com/go/storage.Client that will be used
// by the handler
func Client(cl *storage.Client) Option {
	return func(o *Handler) {
		o.client = cl
	}
}

// Cacher allows to plugin a custom cache mechanism instead of the default in
// memory lru cache. MaxCachedBlocks() will not be honored if you provide your
// own cacher, it is up to your cacher implementation to handle block eviction
func Cacher(cacher pubcache.Cacher) Option {
	return func(o *Handler) {
		o.cacher = cacher
	}
}

// BlockSize sets the size of requests that will go out to the storage API.
// Defaults to 1Mb
func BlockSize(bs int) Option {
	if bs < 1 {
		panic("invalid blocksize")
	}
	return func(o *Handler) {
		o.blockSize = bs
	}
}

// MaxCachedBlocks sets the number of blocks to keep in the lru cache.
// Defaults to 1000
func MaxCachedBlocks(n int) Option {
	if n < 1 {
		panic("invalid max cached blocks")
	}
	return func(o *Handler) {
		o.maxCachedBlocks = n
	}
}

// BillingProject sets the project name which should be billed for the requests.
// This is mandatory if the bucket is in requester-pays mode.
func BillingProject(projectID string) Option {
	return func(o *Handler) {
		o.billingProjectID = projectID
	}
}

//MaxCachedMetadatas sets the number of objects whose size will be kept in cache.
//This also accounts for non-existing objects (i.e. calling Open() twice on a non-exisiting
//object will not result in an API call going to the storage endpoint the second time
func MaxCachedMetadatas(n int) Option {
	if n < 1 {
		panic("invalid max cached metadatas")
	}
	return func(o *Handler) {
		o.maxCachedMetadatas = n
	}
}

// NewHandler creates a Handler. If no Client option is given, a default
// storage client is created with the ambient credentials.
func NewHandler(ctx context.Context, opts ...Option) (*Handler, error) {
	handler := &Handler{
		ctx:                ctx,
		blockSize:          1024 * 1024,
		maxCachedBlocks:    1000,
		maxCachedMetadatas: 10000,
	}
	for _, o := range opts {
		o(handler)
	}
	handler.sizecache, _ = lru.New(handler.maxCachedMetadatas)
	if handler.client == nil {
		cl, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage.newclient: %w", err)
		}
		handler.client = cl
	}
	if handler.cacher == nil {
		var err error
		handler.cacher, err = pubcache.NewCache(uint(handler.maxCachedBlocks))
		if err != nil {
			return nil, err
		}
	}
	handler.blockCache = blockcache.New(handler, handler.cacher, uint(handler.blockSize))
	return handler, nil
}

// Parse splits a gs://bucket/path/to/object uri. The gs:// prefix is optional.
func Parse(gsURI string) (bucket, object string) {
	gsURI = strings.TrimPrefix(gsURI, "gs://")
	gsURI = strings.TrimPrefix(gsURI, "/")
	firstSlash := strings.Index(gsURI, "/")
	if firstSlash == -1 {
		bucket = gsURI
		object = ""
	} else {
		bucket = gsURI[0:firstSlash]
		object = gsURI[firstSlash+1:]
	}
	return
}

func (gcs *Handler) precheck(key string, off int64) error {
	s, ok := gcs.sizecache.Get(key)
	if ok {
		s64 := s.(int64)
		if s64 == -1 {
			return syscall.ENOENT
		}
		if off >= s64 {
			return io.EOF
		}
	}
	return nil
}

// ReadAt reads len(p) bytes at off from the object named by key
// (bucket/path/to/object), bypassing the block cache.
func (gcs *Handler) ReadAt(key string, p []byte, off int64) (int, error) {
	if err := gcs.precheck(key, off); err != nil {
		return 0, err
	}
	bucket, object := Parse(key)
	if len(bucket) == 0 || len(object) == 0 {
		return 0, fmt.Errorf("invalid key %q", key)
	}
	gbucket := gcs.client.Bucket(bucket)
	if gcs.billingProjectID != "" {
		gbucket = gbucket.UserProject(gcs.billingProjectID)
	}
	r, err := gbucket.Object(object).NewRangeReader(gcs.ctx, off, int64(len(p)))
	if err != nil {
		var gerr *googleapi.Error
		if off > 0 && errors.As(err, &gerr) && gerr.Code == 416 {
			return 0, io.EOF
		}
		if off == 0 && errors.Is(err, storage.ErrObjectNotExist) {
			gcs.sizecache.Add(key, int64(-1))
			return 0, syscall.ENOENT
		}
		return 0, fmt.Errorf("new reader for gs://%s/%s: %w", bucket, object, err)
	}
	if sz := r.Attrs.Size; sz > 0 {
		gcs.sizecache.Add(key, sz)
	}
	defer r.Close()
	n, err := io.ReadFull(r, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// Open returns a reader on the gs://bucket/object uri. It fails with
// syscall.ENOENT if the object does not exist.
func (gcs *Handler) Open(uri string) (*Object, error) {
	bucket, object := Parse(uri)
	if len(bucket) == 0 || len(object) == 0 {
		return nil, fmt.Errorf("invalid gcs uri %q", uri)
	}
	obj := &Object{key: bucket + "/" + object, gcs: gcs}
	if _, err := obj.Size(); err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	return obj, nil
}

// Object is an io.ReaderAt on a single cloud storage object
type Object struct {
	key string
	gcs *Handler
}

// Key returns the bucket/object key the Object reads from
func (v *Object) Key() string {
	return v.key
}

// ReadAt implements io.ReaderAt
func (v *Object) ReadAt(buf []byte, off int64) (int, error) {
	if err := v.gcs.precheck(v.key, off); err != nil {
		return 0, err
	}
	return v.gcs.blockCache.ReadAt(v.key, buf, off)
}

// ReadAtMulti reads several ranges at once, merging the requests for
// consecutive blocks
func (v *Object) ReadAtMulti(bufs [][]byte, offs []int64) ([]int, error) {
	s, ok := v.gcs.sizecache.Get(v.key)
	if ok {
		s64 := s.(int64)
		if s64 == -1 {
			return nil, syscall.ENOENT
		}
		for _, off := range offs {
			if off >= s64 {
				return nil, io.EOF
			}
		}
	}
	return v.gcs.blockCache.ReadAtMulti(v.key, bufs, offs)
}

// Size returns the size of the object
func (v *Object) Size() (uint64, error) {
	s, ok := v.gcs.sizecache.Get(v.key)
	if !ok {
		buf := make([]byte, 1)
		_, _ = v.gcs.ReadAt(v.key, buf, 0) //ignore errors as we just want to populate the size cache
		s, ok = v.gcs.sizecache.Get(v.key)
	}
	if ok {
		size := s.(int64)
		if size == -1 {
			return 0, syscall.ENOENT
		}
		return uint64(size), nil
	}
	return 0, fmt.Errorf("size cache miss")
}
