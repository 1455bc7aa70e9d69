// Package minio backs a blobstore.BlobStore with the MinIO Go client.
//
// It targets self-hosted object storage: MinIO itself, plus S3-compatible
// systems such as Ceph, SeaweedFS and Garage. That makes it the store of
// choice for deployments that keep enrolled galleries and trained models
// off the public cloud, since nothing here touches an AWS SDK.
//
// Uploads stream, so galleries larger than memory can be written through
// Create without buffering them first.
//
// # Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "biometrics", "models/")
//	session := brec.NewSession(brec.WithModelStore(store))
//
// Point Secure at true and set Region in minio.Options for TLS endpoints.
package minio
