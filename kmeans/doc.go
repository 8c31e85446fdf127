// Package kmeans clusters points with Lloyd's algorithm.
//
// Clusters that end an update step empty are repaired by a pluggable
// EmptyClusterPolicy. MaxVariance, the default, reseeds an empty
// cluster from the point furthest from the centroid of the
// highest-variance cluster and patches centroids, counts and variances
// incrementally. RandomReinit copies a random point and lets the next
// assignment step sort it out.
//
//	res, err := kmeans.Cluster(ctx, data, 8, func(o *kmeans.Options) {
//	    o.Seed = 42
//	})
package kmeans
