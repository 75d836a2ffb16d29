// Package s3 implements blobstore.Store on Amazon S3 using the AWS SDK
// v2. Puts go through the transfer manager so large snapshot frames
// upload in parts.
package s3
